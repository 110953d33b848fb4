package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/analytics"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/publisher"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/transfer"
	"github.com/maheshrc27/postpilot/pkg/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

type YoutubeService interface {
	YoutubeCallback(ctx context.Context, code string, userID int64) (err error)
	RefreshYoutubeToken(ctx context.Context, userID int64, accessToken, refreshToken string) error
	publisher.Publisher
	analytics.MetricsSource
}

type youtubeService struct {
	cfg config.Config
	sa  repository.SocialAccountRepository
}

func NewYoutubeService(cfg config.Config, sa repository.SocialAccountRepository) YoutubeService {
	return &youtubeService{
		cfg: cfg,
		sa:  sa,
	}
}

func (s *youtubeService) Platform() string {
	return "youtube"
}

func (s *youtubeService) YoutubeCallback(ctx context.Context, code string, userID int64) (err error) {

	if code == "" {
		err = errors.New("code or state is empty")
		slog.Info(err.Error())
		return err
	}

	oauth2Config := &oauth2.Config{
		ClientID:     s.cfg.GoogleClientID,
		ClientSecret: s.cfg.GoogleClientSecret,
		RedirectURL:  "http://localhost:3000/auth/youtube/callback",
		Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile", "https://www.googleapis.com/auth/youtube.upload", "https://www.googleapis.com/auth/youtube.readonly"},
		Endpoint:     google.Endpoint,
	}

	if oauth2Config.ClientID == "" || oauth2Config.ClientSecret == "" || oauth2Config.RedirectURL == "" {
		err = errors.New("OAuth2 configration is incomplete")
		slog.Info(err.Error())
		return err
	}

	token, err := oauth2Config.Exchange(context.Background(), code)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	if token.RefreshToken == "" {
		err = errors.New("refresh token is empty")
		slog.Info(err.Error())
		return err
	}

	client := oauth2Config.Client(context.Background(), token)
	userInfo, err := GetUserInfo(client)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	encryptedRefreshToken, err := utils.Encrypt([]byte(token.RefreshToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	accountInfo := &models.SocialAccount{
		UserID:          int64(userID),
		Platform:        "youtube",
		AccountID:       userInfo.ID,
		AccountName:     userInfo.Name,
		AccountUsername: userInfo.Email,
		ProfilePicture:  userInfo.Picture,
		AccessToken:     encryptedAccessToken,
		RefreshToken:    encryptedRefreshToken,
		TokenExpiresAt:  token.Expiry,
	}

	_, err = s.sa.Create(ctx, nil, accountInfo)
	if err != nil {
		return err
	}

	return nil
}

func (s *youtubeService) RefreshYoutubeToken(ctx context.Context, userID int64, accessToken, refreshToken string) error {
	conf := &oauth2.Config{
		ClientID:     s.cfg.GoogleClientID,
		ClientSecret: s.cfg.GoogleClientSecret,
		Scopes:       []string{"https://www.googleapis.com/auth/youtube.upload"},
		Endpoint:     google.Endpoint,
	}

	decryptedRefreshToken, err := utils.Decrypt(refreshToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	tokenSource := conf.TokenSource(context.Background(), &oauth2.Token{RefreshToken: decryptedRefreshToken})

	token, err := tokenSource.Token()
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	socialAccount := models.SocialAccount{
		AccessToken:    encryptedAccessToken,
		TokenExpiresAt: token.Expiry,
	}

	err = s.sa.SetToken(ctx, userID, accessToken, &socialAccount)
	if err != nil {
		return err
	}

	return nil
}

// Publish uploads the occurrence's first media url to the account's YouTube
// channel. YouTube takes one video per post, extra media urls are ignored.
func (s *youtubeService) Publish(ctx context.Context, r *publisher.Request) (*publisher.Result, error) {
	accessToken, err := utils.Decrypt(r.Account.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, &publisher.Error{Kind: publisher.ErrKindAuth, Err: err}
	}

	if len(r.MediaURLs) == 0 {
		return nil, &publisher.Error{Kind: publisher.ErrKindUnsupported, Err: errors.New("youtube posts need a video url")}
	}

	service, err := s.newYoutubeClient(ctx, accessToken)
	if err != nil {
		log.Printf("Error creating YouTube service: %v", err)
		return nil, err
	}

	videoID, err := uploadVideoFromURL(service, CaptionWithHashtags(r.Post.Caption, r.Post.Hashtags), r.Post.Title, r.MediaURLs[0])
	if err != nil {
		return nil, &publisher.Error{Kind: publisher.ErrKindRemote, Retryable: true, Err: err}
	}

	return &publisher.Result{RemoteID: videoID}, nil
}

func (s *youtubeService) newYoutubeClient(ctx context.Context, accessToken string) (*youtube.Service, error) {
	token := &oauth2.Token{
		AccessToken: accessToken,
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	return youtube.NewService(ctx, option.WithHTTPClient(client))
}

func uploadVideoFromURL(service *youtube.Service, caption, title, mediaURL string) (string, error) {
	tempFile, err := downloadVideo(mediaURL)
	if err != nil {
		return "", fmt.Errorf("error downloading video: %w", err)
	}
	defer os.Remove(tempFile)

	file, err := os.Open(tempFile)
	if err != nil {
		log.Printf("Error opening video file: %v", err)
		return "", err
	}
	defer file.Close()

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Description: caption,
			Title:       title,
			CategoryId:  "22",
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: "public",
		},
	}

	call := service.Videos.Insert([]string{"snippet", "status"}, video)
	response, err := call.Media(file).Do()
	if err != nil {
		log.Printf("Error uploading video: %v", err)
		return "", err
	}

	return response.Id, nil
}

func downloadVideo(mediaURL string) (string, error) {
	// Create a temporary file
	tempFile, err := os.CreateTemp("", "video-*.mp4")
	if err != nil {
		return "", fmt.Errorf("error creating temporary file: %w", err)
	}
	defer tempFile.Close()

	// Download the video
	response, err := http.Get(mediaURL)
	if err != nil {
		return "", fmt.Errorf("error downloading video: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected response status: %d", response.StatusCode)
	}

	// Save the video to the temporary file
	_, err = io.Copy(tempFile, response.Body)
	if err != nil {
		return "", fmt.Errorf("error saving video to temporary file: %w", err)
	}

	// Return the temporary file path
	return tempFile.Name(), nil
}

// Poll reads the channel's lifetime statistics. YouTube reports totals, so
// only the snapshot fields of the sample are filled.
func (s *youtubeService) Poll(ctx context.Context, acc *models.SocialAccount) ([]analytics.TimedSample, error) {
	accessToken, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	service, err := s.newYoutubeClient(ctx, accessToken)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	resp, err := service.Channels.List([]string{"statistics"}).Mine(true).Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	if len(resp.Items) == 0 || resp.Items[0].Statistics == nil {
		return nil, errors.New("no channel statistics returned")
	}

	stats := resp.Items[0].Statistics

	sample := analytics.TimedSample{At: time.Now()}
	sample.Followers = int64(stats.SubscriberCount)
	sample.Impressions = int64(stats.ViewCount)

	return []analytics.TimedSample{sample}, nil
}

func GetUserInfo(client *http.Client) (*transfer.GoogleUserInfo, error) {
	userInfoURL := "https://www.googleapis.com/oauth2/v1/userinfo"

	response, err := client.Get(userInfoURL)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("error fetching user info: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		slog.Info("Unexpected response status")
		return nil, fmt.Errorf("unexpected response status: %d", response.StatusCode)
	}

	var userInfo transfer.GoogleUserInfo
	if err := json.NewDecoder(response.Body).Decode(&userInfo); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("error decoding user info: %w", err)
	}

	return &userInfo, nil
}

func RevokeGoogleAccess(accessToken string) error {
	url := "https://oauth2.googleapis.com/revoke"
	payload := []byte("token=" + accessToken)

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to revoke token, status code: %d", resp.StatusCode)
	}
	return nil
}
