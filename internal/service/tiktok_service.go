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
	"net/url"
	"strings"
	"time"

	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/analytics"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/publisher"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/transfer"
	"github.com/maheshrc27/postpilot/pkg/utils"
)

const tiktokTokenURL = "https://open.tiktokapis.com/v2/oauth/token/"

type TiktokService interface {
	TiktokCallback(ctx context.Context, code string, userID int64) (err error)
	RefreshTiktokToken(ctx context.Context, userID int64, accessToken, refreshToken string) error
	publisher.Publisher
	analytics.MetricsSource
}

type tiktokService struct {
	cfg config.Config
	sa  repository.SocialAccountRepository
}

func NewTiktokService(cfg config.Config, sa repository.SocialAccountRepository) TiktokService {
	return &tiktokService{
		cfg: cfg,
		sa:  sa,
	}
}

func (s *tiktokService) Platform() string {
	return "tiktok"
}

func (s *tiktokService) TiktokCallback(ctx context.Context, code string, userID int64) (err error) {

	if code == "" {
		err = errors.New("code or state is empty")
		slog.Info(err.Error())
		return err
	}

	tokenResponse, err := s.exchangeCodeForToken(code)
	if err != nil {
		return err
	}

	userInfo, err := TiktokUserInfo(tokenResponse.AccessToken)
	if err != nil {
		return err
	}

	log.Printf("TikTok user info fetched: %v", userInfo)

	encryptedAccessToken, err := utils.Encrypt([]byte(tokenResponse.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	encryptedRefreshToken, err := utils.Encrypt([]byte(tokenResponse.RefreshToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	accountInfo := &models.SocialAccount{
		UserID:          int64(userID),
		Platform:        "tiktok",
		AccountID:       userInfo.Data.User.OpenID,
		AccountName:     userInfo.Data.User.DisplayName,
		AccountUsername: userInfo.Data.User.Username,
		ProfilePicture:  userInfo.Data.User.AvatarURL,
		AccessToken:     encryptedAccessToken,
		RefreshToken:    encryptedRefreshToken,
		TokenExpiresAt:  GetExpiresAt(tokenResponse.ExpiresIn),
	}

	_, err = s.sa.Create(ctx, nil, accountInfo)
	if err != nil {
		return err
	}

	return nil
}

func (s *tiktokService) exchangeCodeForToken(code string) (*transfer.TiktokTokenResponse, error) {
	data := url.Values{}
	data.Add("client_key", s.cfg.TiktokClientKey)
	data.Add("client_secret", s.cfg.TiktokClientSecret)
	data.Add("scopes", "user.info.basic,user.info.profile,user.info.stats,video.publish,video.upload")
	data.Add("code", code)
	data.Add("grant_type", "authorization_code")
	data.Add("redirect_uri", s.cfg.TiktokRedirectURI)

	resp, err := http.Post(
		tiktokTokenURL,
		"application/x-www-form-urlencoded",
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Info("TikTok token endpoint returned non-200 status")
		return nil, errors.New("TikTok token endpoint returned non-200 status")
	}

	var tokenResponse transfer.TiktokTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	return &tokenResponse, nil
}

func TiktokUserInfo(accessToken string) (*transfer.TikTokResponse, error) {
	url := "https://open.tiktokapis.com/v2/user/info/?fields=open_id,avatar_url,display_name,username"

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		log.Println("Error creating request:", err)
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	var result transfer.TikTokResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return &result, nil
}

func (s *tiktokService) RefreshTiktokToken(ctx context.Context, userID int64, accessToken, refreshToken string) error {

	decryptedRefreshToken, err := utils.Decrypt(refreshToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}
	apiURL := "https://open.tiktokapis.com/v2/oauth/token/"

	data := url.Values{}
	data.Set("client_key", s.cfg.TiktokClientKey)
	data.Set("client_secret", s.cfg.TiktokClientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", decryptedRefreshToken)

	// Create a POST request
	req, err := http.NewRequest("POST", apiURL, bytes.NewBufferString(data.Encode()))
	if err != nil {
		return err
	}

	// Set headers
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	// Execute the request
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Check for non-200 status code
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("TikTok token refresh returned status %d: %s", resp.StatusCode, bodyBytes)
	}

	// Parse response body
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	var tokenResponse transfer.TiktokTokenResponse
	err = json.Unmarshal(bodyBytes, &tokenResponse)
	if err != nil {
		return err
	}

	ExpiresAt := time.Now().Add(time.Second * time.Duration(tokenResponse.ExpiresIn))

	encryptedAccessToken, err := utils.Encrypt([]byte(tokenResponse.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	encryptedRefreshToken, err := utils.Encrypt([]byte(tokenResponse.RefreshToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	socialAccount := models.SocialAccount{
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedRefreshToken,
		TokenExpiresAt: ExpiresAt,
	}

	err = s.sa.SetToken(ctx, userID, accessToken, &socialAccount)
	if err != nil {
		return err
	}

	return nil
}

// Publish places one occurrence on the account's TikTok profile. Multi image
// posts go through the photo content endpoint, everything else through the
// video endpoint with the first media url as source.
func (s *tiktokService) Publish(ctx context.Context, r *publisher.Request) (*publisher.Result, error) {
	accessToken, err := utils.Decrypt(r.Account.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, &publisher.Error{Kind: publisher.ErrKindAuth, Err: err}
	}

	if len(r.MediaURLs) == 0 {
		return nil, &publisher.Error{Kind: publisher.ErrKindUnsupported, Err: errors.New("tiktok posts need at least one media url")}
	}

	if err := QueryCreatorInfoRequest(ctx, accessToken); err != nil {
		return nil, &publisher.Error{Kind: publisher.ErrKindRemote, Retryable: true, Err: err}
	}

	title := CaptionWithHashtags(r.Post.Caption, r.Post.Hashtags)

	var publishID string
	if r.Post.PostType == models.PostTypeMultiple {
		publishID, err = s.postPhotos(ctx, title, r.MediaURLs, accessToken)
	} else {
		publishID, err = s.postVideo(ctx, title, r.MediaURLs[0], accessToken)
	}
	if err != nil {
		return nil, err
	}

	return &publisher.Result{RemoteID: publishID}, nil
}

func (s *tiktokService) postVideo(ctx context.Context, title, videoURL, accessToken string) (string, error) {
	videoUploadRequest := transfer.VideoUploadRequest{
		PostInfo: transfer.VideoPostInfo{
			Title:                 title,
			PrivacyLevel:          "PUBLIC_TO_EVERYONE",
			DisableDuet:           false,
			DisableComment:        false,
			DisableStitch:         false,
			VideoCoverTimestampMs: 1000,
		},
		SourceInfo: transfer.VideoSourceInfo{
			Source:   "PULL_FROM_URL",
			VideoURL: videoURL,
		},
	}

	return s.initPublish(ctx, "https://open.tiktokapis.com/v2/post/publish/video/init/", videoUploadRequest, accessToken)
}

func (s *tiktokService) postPhotos(ctx context.Context, title string, photoURLs []string, accessToken string) (string, error) {
	photoUploadRequest := transfer.PhotUploadRequest{
		PostInfo: transfer.PhotoPostInfo{
			Title:                title,
			PrivacyLevel:         "PUBLIC_TO_EVERYONE",
			AutoAddMusic:         true,
			DisableComment:       false,
			BrandContentToggle:   false,
			Brand_Organic_Toggle: false,
		},
		SourceInfo: transfer.PhotoSourceInfo{
			Source:          "PULL_FROM_URL",
			PhotoCoverIndex: 1,
			PhotoImages:     photoURLs,
		},
		PostMode:  "DIRECT_POST",
		MediaType: "PHOTO",
	}

	return s.initPublish(ctx, "https://open.tiktokapis.com/v2/post/publish/content/init/", photoUploadRequest, accessToken)
}

func (s *tiktokService) initPublish(ctx context.Context, uploadURL string, payload interface{}, accessToken string) (string, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		log.Println("Error marshalling data:", err)
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", uploadURL, bytes.NewBuffer(jsonData))
	if err != nil {
		log.Println("Error creating request:", err)
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", &publisher.Error{Kind: publisher.ErrKindRemote, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	var result transfer.TikTokUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Println(err.Error())
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		kind := publisher.ErrKindRemote
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			kind = publisher.ErrKindAuth
		}
		return "", &publisher.Error{
			Kind:      kind,
			Retryable: resp.StatusCode >= http.StatusInternalServerError,
			Err:       fmt.Errorf("tiktok publish init returned status %d: %s", resp.StatusCode, result.Error.Message),
		}
	}

	return result.Data.PublishID, nil
}

// Poll reads the account's profile stats. TikTok exposes totals rather than
// per-day activity, so the sample carries snapshot fields only.
func (s *tiktokService) Poll(ctx context.Context, acc *models.SocialAccount) ([]analytics.TimedSample, error) {
	accessToken, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	url := "https://open.tiktokapis.com/v2/user/info/?fields=open_id,follower_count,likes_count,video_count"

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tiktok user info returned status %d", resp.StatusCode)
	}

	var result transfer.TikTokResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	sample := analytics.TimedSample{At: time.Now()}
	sample.Followers = result.Data.User.FollowerCount
	if result.Data.User.FollowerCount > 0 {
		sample.EngagementRate = float64(result.Data.User.LikesCount) / float64(result.Data.User.FollowerCount)
	}

	return []analytics.TimedSample{sample}, nil
}

func QueryCreatorInfoRequest(ctx context.Context, accessToken string) error {
	requestURL := "https://open.tiktokapis.com/v2/post/publish/creator_info/query/"
	req, err := http.NewRequestWithContext(ctx, "POST", requestURL, nil)
	if err != nil {
		log.Println("Error creating request:", err)
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("creator info query returned status %d", resp.StatusCode)
	}

	return nil
}

func RevokeTiktokAccess(openID, accessToken string) error {
	urlRevoke := "https://open-api.tiktok.com/oauth/revoke/"
	params := url.Values{}
	params.Add("open_id", openID)
	params.Add("access_token", accessToken)

	req, err := http.NewRequest("POST", urlRevoke, strings.NewReader(params.Encode()))
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

	var result transfer.TiktokRevokeData
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return err
	}

	log.Println("desc", result.Description)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to revoke token, status code: %s", result.Description)
	}
	return nil
}
