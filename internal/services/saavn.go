package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rolx/internal/models"
	"github.com/desertthunder/rolx/internal/shared"
)

const (
	defaultSongBaseURL   = "https://jiosavvan.vercel.app"
	defaultSearchBaseURL = "https://saavn.sumit.co/api"
	defaultUserAgent     = "rolx/0.1"
)

// SaavnService implements [Catalog] against the song-details and search mirrors.
type SaavnService struct {
	songBaseURL   string
	searchBaseURL string
	userAgent     string
	httpClient    *http.Client
	logger        *log.Logger
}

// NewSaavnService creates a catalog client. Empty URLs fall back to the public mirrors.
func NewSaavnService(cfg shared.CatalogConfig, client *http.Client, logger *log.Logger) *SaavnService {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	svc := &SaavnService{
		songBaseURL:   strings.TrimRight(cfg.SongBaseURL, "/"),
		searchBaseURL: strings.TrimRight(cfg.SearchBaseURL, "/"),
		userAgent:     cfg.UserAgent,
		httpClient:    client,
		logger:        logger,
	}
	if svc.songBaseURL == "" {
		svc.songBaseURL = defaultSongBaseURL
	}
	if svc.searchBaseURL == "" {
		svc.searchBaseURL = defaultSearchBaseURL
	}
	if svc.userAgent == "" {
		svc.userAgent = defaultUserAgent
	}
	return svc
}

// Name returns the catalog name.
func (s *SaavnService) Name() string {
	return "Saavn"
}

type songEnvelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// FetchTrackByID looks up a song and returns the first entry that has a source URL.
func (s *SaavnService) FetchTrackByID(ctx context.Context, id string) (*models.Track, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: track id is required", shared.ErrInvalidInput)
	}

	endpoint := fmt.Sprintf("%s/songs?id=%s", s.songBaseURL, url.QueryEscape(id))

	var raw json.RawMessage
	if err := s.doRequest(ctx, endpoint, &raw); err != nil {
		return nil, err
	}

	payload := raw
	var env songEnvelope
	if json.Unmarshal(raw, &env) == nil && env.Status == "SUCCESS" {
		payload = env.Data
	}

	for _, song := range decodeSongs(payload) {
		track, ok := song.normalize()
		if ok && track.Playable() {
			return &track, nil
		}
	}

	s.logger.Debug("catalog returned no playable entry", "catalog", s.Name(), "id", id)
	return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
}

type searchEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Total   int               `json:"total"`
		Results []json.RawMessage `json:"results"`
	} `json:"data"`
}

// SearchTracks runs a song search and normalizes every result that has an id.
func (s *SaavnService) SearchTracks(ctx context.Context, query string, page, limit int) (*models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", shared.ErrInvalidInput)
	}
	if page < 0 {
		page = 0
	}
	if limit <= 0 {
		limit = 10
	}

	endpoint := fmt.Sprintf("%s/search/songs?query=%s&page=%d&limit=%d",
		s.searchBaseURL, url.QueryEscape(query), page, limit)

	var env searchEnvelope
	if err := s.doRequest(ctx, endpoint, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = "search was not successful"
		}
		return nil, fmt.Errorf("%w: %s", shared.ErrAPIRequest, msg)
	}

	result := &models.SearchResult{Total: env.Data.Total, Results: make([]models.Track, 0, len(env.Data.Results))}
	for _, item := range env.Data.Results {
		var song rawSong
		if err := json.Unmarshal(item, &song); err != nil {
			s.logger.Debug("skipping undecodable search result", "error", err)
			continue
		}
		if track, ok := song.normalize(); ok {
			result.Results = append(result.Results, track)
		}
	}
	return result, nil
}

// doRequest performs a GET and decodes the JSON body into result.
func (s *SaavnService) doRequest(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, req.URL.Path)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
	}
	return nil
}
