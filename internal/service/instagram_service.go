package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
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

type InstagramService interface {
	InstagramCallback(ctx context.Context, code string, userID int64) (err error)
	RefreshInstagramToken(ctx context.Context, userID int64, refreshToken string) error
	publisher.Publisher
	analytics.MetricsSource
}

type instagramService struct {
	cfg config.Config
	sa  repository.SocialAccountRepository
}

func NewInstagramService(cfg config.Config, sa repository.SocialAccountRepository) InstagramService {
	return &instagramService{
		cfg: cfg,
		sa:  sa,
	}
}

func (ig *instagramService) Platform() string {
	return "instagram"
}

func (ig *instagramService) InstagramCallback(ctx context.Context, code string, userID int64) (err error) {

	if code == "" {
		err = errors.New("code or state is empty")
		slog.Info(err.Error())
		return err
	}

	if userID == 0 {
		err = errors.New("User not found")
		slog.Info(err.Error())
		return err
	}

	token, err := ig.ExchangeCodeForToken(ctx, code)
	if err != nil {
		return err
	}

	userInfo, err := ig.GetInstagramUserInfo(token.LongLivedToken)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(ig.cfg.SecretKey))
	if err != nil {
		return err
	}

	accountInfo := &models.SocialAccount{
		UserID:          userID,
		Platform:        "instagram",
		AccountID:       userInfo.UserID,
		AccountName:     userInfo.Name,
		AccountUsername: userInfo.Username,
		ProfilePicture:  userInfo.ProfilePicture,
		AccessToken:     encryptedAccessToken,
		RefreshToken:    encryptedAccessToken,
		TokenExpiresAt:  token.ExpiresAt,
	}

	_, err = ig.sa.Create(ctx, nil, accountInfo)
	if err != nil {
		return err
	}

	return nil
}

func (ig *instagramService) getShortLivedToken(code string) (*transfer.InstagramToken, error) {
	// Prepare the request body
	data := url.Values{}
	data.Set("client_id", ig.cfg.InstagramClientID)
	data.Set("client_secret", ig.cfg.InstagramClientSecret)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", ig.cfg.InstagramRedirectURI)
	data.Set("code", code)

	// Make the request to Instagram
	resp, err := http.Post(
		"https://api.instagram.com/oauth/access_token",
		"application/x-www-form-urlencoded",
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to get short-lived token: %v", err)
	}
	defer resp.Body.Close()

	// Parse the response
	var result struct {
		AccessToken string `json:"access_token"`
		UserID      int    `json:"user_id"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to decode token response: %v", err)
	}

	// Create token object
	token := &transfer.InstagramToken{
		UserID:      result.UserID,
		AccessToken: result.AccessToken,
		ExpiresAt:   time.Now().Add(time.Hour),
	}

	return token, nil
}

func (ig *instagramService) getLongLivedToken(shortLivedToken string) (*struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}, error) {
	url := fmt.Sprintf(
		"https://graph.instagram.com/access_token?grant_type=ig_exchange_token&client_secret=%s&access_token=%s",
		ig.cfg.InstagramClientSecret,
		shortLivedToken,
	)

	resp, err := http.Get(url)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to get long-lived token: %v", err)
	}
	defer resp.Body.Close()

	// Check for HTTP errors
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body) // Read the body for debugging
		return nil, fmt.Errorf("error response from Instagram: %s (status code: %d)", body, resp.StatusCode)
	}

	var result struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to decode long-lived token response: %v", err)
	}

	return &struct {
		AccessToken string    `json:"access_token"`
		ExpiresAt   time.Time `json:"expires_at"`
	}{
		AccessToken: result.AccessToken,
		ExpiresAt:   time.Now().Add(time.Second * time.Duration(result.ExpiresIn)),
	}, nil
}

func (ig *instagramService) ExchangeCodeForToken(ctx context.Context, code string) (*transfer.InstagramToken, error) {

	shortLivedToken, err := ig.getShortLivedToken(code)
	if err != nil {
		return nil, fmt.Errorf("failed to get short-lived token: %v", err)
	}

	// Exchange for long-lived token
	longLivedToken, err := ig.getLongLivedToken(shortLivedToken.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get long-lived token: %v", err)
	}

	token := &transfer.InstagramToken{
		AccessToken:    longLivedToken.AccessToken,
		LongLivedToken: longLivedToken.AccessToken,
		ExpiresAt:      longLivedToken.ExpiresAt,
	}

	return token, nil
}

func (ig *instagramService) GetInstagramUserInfo(accessToken string) (*transfer.InstagramUserInfo, error) {
	var userInfo transfer.InstagramUserInfo

	reqUrl := fmt.Sprintf(
		"https://graph.instagram.com/me?fields=id,username,name,account_type,profile_picture_url&access_token=%s",
		accessToken,
	)

	resp, err := http.Get(reqUrl)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return &userInfo, nil
}

func (s *instagramService) RefreshInstagramToken(ctx context.Context, userID int64, refreshToken string) error {

	decryptedRefreshToken, err := utils.Decrypt(refreshToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	// Refresh long-lived token
	url := fmt.Sprintf(
		"https://graph.instagram.com/refresh_access_token?grant_type=ig_refresh_token&access_token=%s",
		decryptedRefreshToken,
	)

	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}

	ExpiresAt := time.Now().Add(time.Second * time.Duration(result.ExpiresIn))

	encryptedAccessToken, err := utils.Encrypt([]byte(result.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	socialAccount := models.SocialAccount{
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedAccessToken,
		TokenExpiresAt: ExpiresAt,
	}

	err = s.sa.SetToken(ctx, userID, refreshToken, &socialAccount)
	if err != nil {
		return err
	}

	return nil
}

// Publish places one occurrence on the account's Instagram profile. Single
// image posts go out through one media container, multi image posts through
// a carousel container.
func (s *instagramService) Publish(ctx context.Context, r *publisher.Request) (*publisher.Result, error) {
	accessToken, err := utils.Decrypt(r.Account.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, &publisher.Error{Kind: publisher.ErrKindAuth, Err: err}
	}

	if len(r.MediaURLs) == 0 {
		return nil, &publisher.Error{Kind: publisher.ErrKindUnsupported, Err: errors.New("instagram posts need at least one media url")}
	}

	caption := CaptionWithHashtags(r.Post.Caption, r.Post.Hashtags)

	var containerID string
	if len(r.MediaURLs) == 1 {
		containerID, err = s.createMediaContainer(ctx, r.Account.AccountID, map[string]interface{}{
			"image_url":    r.MediaURLs[0],
			"caption":      caption,
			"access_token": accessToken,
		})
	} else {
		containerID, err = s.createCarouselContainer(ctx, r.Account.AccountID, caption, r.MediaURLs, accessToken)
	}
	if err != nil {
		return nil, err
	}

	remoteID, err := s.publishContainer(ctx, r.Account.AccountID, containerID, accessToken)
	if err != nil {
		return nil, err
	}

	return &publisher.Result{RemoteID: remoteID}, nil
}

func (s *instagramService) createCarouselContainer(ctx context.Context, accountID, caption string, mediaURLs []string, accessToken string) (string, error) {
	containerIDs := make([]string, 0, len(mediaURLs))

	for _, mediaURL := range mediaURLs {
		id, err := s.createMediaContainer(ctx, accountID, map[string]interface{}{
			"image_url":        mediaURL,
			"is_carousel_item": true,
			"access_token":     accessToken,
		})
		if err != nil {
			return "", err
		}
		containerIDs = append(containerIDs, id)
	}

	return s.createMediaContainer(ctx, accountID, map[string]interface{}{
		"media_type":   "CAROUSEL",
		"caption":      caption,
		"children":     containerIDs,
		"access_token": accessToken,
	})
}

func (s *instagramService) createMediaContainer(ctx context.Context, accountID string, payload map[string]interface{}) (string, error) {
	url := fmt.Sprintf("https://graph.instagram.com/v21.0/%s/media", accountID)

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", &publisher.Error{Kind: publisher.ErrKindRemote, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", instagramStatusError(resp)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}

	if result.ID == "" {
		return "", errors.New("no media ID returned from Instagram")
	}

	return result.ID, nil
}

func (s *instagramService) publishContainer(ctx context.Context, accountID, containerID, accessToken string) (string, error) {
	url := fmt.Sprintf("https://graph.instagram.com/v21.0/%s/media_publish", accountID)
	payload := map[string]string{
		"creation_id":  containerID,
		"access_token": accessToken,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", &publisher.Error{Kind: publisher.ErrKindRemote, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", instagramStatusError(resp)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}

	if result.ID == "" {
		return "", errors.New("no media ID returned from Instagram")
	}

	return result.ID, nil
}

func instagramStatusError(resp *http.Response) error {
	respBody, _ := io.ReadAll(resp.Body)

	var igErr transfer.InstagramErrorResponse
	_ = json.Unmarshal(respBody, &igErr)

	kind := publisher.ErrKindRemote
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		kind = publisher.ErrKindAuth
	}

	return &publisher.Error{
		Kind:      kind,
		Retryable: igErr.Error.IsTransient || resp.StatusCode >= http.StatusInternalServerError,
		Err:       fmt.Errorf("unexpected status code from Instagram: %d: %s", resp.StatusCode, igErr.Error.Message),
	}
}

// Poll reads the account's daily insight metrics plus the current follower
// count and folds them into a single sample stamped with the poll time.
func (s *instagramService) Poll(ctx context.Context, acc *models.SocialAccount) ([]analytics.TimedSample, error) {
	accessToken, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	reqUrl := fmt.Sprintf(
		"https://graph.instagram.com/v21.0/%s/insights?metric=impressions,reach,likes,comments,shares&period=day&access_token=%s",
		acc.AccountID, accessToken,
	)

	req, err := http.NewRequestWithContext(ctx, "GET", reqUrl, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code from Instagram insights: %d", resp.StatusCode)
	}

	var insights transfer.InstagramInsightsResponse
	if err := json.NewDecoder(resp.Body).Decode(&insights); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	sample := analytics.TimedSample{At: time.Now()}
	for _, metric := range insights.Data {
		if len(metric.Values) == 0 {
			continue
		}
		value := metric.Values[len(metric.Values)-1].Value
		switch metric.Name {
		case "impressions":
			sample.Impressions = int64(value)
		case "reach":
			sample.Reach = int64(value)
		case "likes":
			sample.Likes = int64(value)
		case "comments":
			sample.Comments = int64(value)
		case "shares":
			sample.Shares = int64(value)
		}
	}

	followers, err := s.followersCount(ctx, accessToken)
	if err != nil {
		slog.Info(err.Error())
	} else {
		sample.Followers = followers
	}

	if sample.Reach > 0 {
		interactions := sample.Likes + sample.Comments + sample.Shares
		sample.EngagementRate = float64(interactions) / float64(sample.Reach)
	}

	return []analytics.TimedSample{sample}, nil
}

func (s *instagramService) followersCount(ctx context.Context, accessToken string) (int64, error) {
	reqUrl := fmt.Sprintf("https://graph.instagram.com/me?fields=followers_count&access_token=%s", accessToken)

	req, err := http.NewRequestWithContext(ctx, "GET", reqUrl, nil)
	if err != nil {
		return 0, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code from Instagram: %d", resp.StatusCode)
	}

	var result struct {
		FollowersCount int64 `json:"followers_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, err
	}

	return result.FollowersCount, nil
}
