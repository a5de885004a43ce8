package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/Siddarth2230/serial-tags/internal/logging"
	"github.com/Siddarth2230/serial-tags/internal/models"
	"github.com/Siddarth2230/serial-tags/internal/repository"
	"github.com/Siddarth2230/serial-tags/pkg/cache"
	"github.com/Siddarth2230/serial-tags/pkg/idgen"
	"github.com/Siddarth2230/serial-tags/pkg/metrics"
	"github.com/Siddarth2230/serial-tags/pkg/tagcode"
)

var (
	ErrInvalidURL   = errors.New("invalid URL")
	ErrInvalidTag   = tagcode.ErrInvalidTag
	ErrOutOfRange   = tagcode.ErrOutOfRange
	ErrInvalidTTL   = errors.New("ttl out of range")
	ErrTagTaken     = errors.New("tag already taken")
	ErrNotFound     = errors.New("tag not found")
	ErrExpired      = errors.New("tag expired")
	ErrGenExhausted = errors.New("failed to find a free serial after retries")
	ErrHashConflict = errors.New("hashed serial already holds a different target")
)

// Store persists links by serial. *repository.LinkRepository implements it.
type Store interface {
	Save(ctx context.Context, link *models.Link) error
	FindBySerial(ctx context.Context, serial int64) (*models.Link, error)
	DeleteBySerial(ctx context.Context, serial int64) error
}

// RemoteCache is the shared second cache layer. *cache.RedisCache
// implements it; Get returns cache.ErrCacheMiss when the key is absent.
type RemoteCache interface {
	Get(ctx context.Context, key string, v interface{}) error
	Set(ctx context.Context, key string, v interface{}) error
	Delete(ctx context.Context, key string) error
}

// max attempts for generate/save loops
const maxAttempts = 6

// longest TTL whose time.Duration does not overflow
const maxTTLSeconds = math.MaxInt64 / int64(time.Second)

// LinkService stores targets under serials and resolves tags back to them.
type LinkService struct {
	store     Store
	generator idgen.Generator
	baseURL   string // optional; set to produce absolute short URLs
	local     *cache.LRU[int64, models.Link]
	remote    RemoteCache // optional
	now       func() time.Time
}

// NewLinkService constructor. remote may be nil.
func NewLinkService(store Store, gen idgen.Generator, remote RemoteCache, baseURL string, cacheSize int) *LinkService {
	return &LinkService{
		store:     store,
		generator: gen,
		baseURL:   baseURL,
		local:     cache.NewLRU[int64, models.Link](cacheSize),
		remote:    remote,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Shorten stores req.URL and returns its tag. With a custom tag the link
// is stored under the tag's serial; otherwise the generator picks one.
func (s *LinkService) Shorten(ctx context.Context, req models.ShortenRequest) (*models.ShortenResponse, error) {
	if err := validateURL(req.URL); err != nil {
		return nil, err
	}
	if req.TTLSeconds < 0 || req.TTLSeconds > maxTTLSeconds {
		return nil, fmt.Errorf("%w: %d seconds", ErrInvalidTTL, req.TTLSeconds)
	}

	now := s.now()
	link := &models.Link{
		Target:    req.URL,
		CreatedAt: now,
	}
	if req.TTLSeconds > 0 {
		exp := now.Add(time.Duration(req.TTLSeconds) * time.Second)
		link.ExpiresAt = &exp
	}

	if req.CustomTag != "" {
		serial, err := s.decode(req.CustomTag)
		if err != nil {
			return nil, err
		}
		link.Serial = serial
		err = s.store.Save(ctx, link)
		if errors.Is(err, repository.ErrDuplicate) {
			existing, lerr := s.liveLink(ctx, serial, now)
			if lerr != nil {
				return nil, lerr
			}
			if existing != nil {
				return nil, ErrTagTaken
			}
			// the previous holder expired
			if err = s.store.Save(ctx, link); errors.Is(err, repository.ErrDuplicate) {
				return nil, ErrTagTaken
			}
		}
		if err != nil {
			return nil, err
		}
		return s.respond(link)
	}

	logger := logging.Ctx(ctx)
	for i := 0; i < maxAttempts; i++ {
		serial, err := s.generator.Next(ctx, req.URL)
		if err != nil {
			// generator failure is fatal
			return nil, fmt.Errorf("next serial: %w", err)
		}
		link.Serial = serial

		err = s.store.Save(ctx, link)
		if err == nil {
			return s.respond(link)
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}

		if _, ok := s.generator.(*idgen.HashGenerator); ok {
			// same target hashes to the same serial every time
			existing, lerr := s.liveLink(ctx, serial, now)
			if lerr != nil {
				return nil, lerr
			}
			if existing == nil {
				continue
			}
			if existing.Target == req.URL {
				return s.respond(existing)
			}
			return nil, ErrHashConflict
		}

		logger.Warn().Int64(logging.FieldSerial, serial).
			Int("attempt", i+1).Msg("serial already stored, retrying")
	}
	return nil, ErrGenExhausted
}

// liveLink returns the unexpired link stored under serial. An expired link
// is deleted and nil is returned, as it is when nothing is stored.
func (s *LinkService) liveLink(ctx context.Context, serial int64, now time.Time) (*models.Link, error) {
	existing, err := s.store.FindBySerial(ctx, serial)
	if err != nil {
		return nil, err
	}
	if existing == nil || !existing.Expired(now) {
		return existing, nil
	}
	if err := s.store.DeleteBySerial(ctx, serial); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	s.invalidate(ctx, serial)
	logger := logging.Ctx(ctx)
	logger.Info().Int64(logging.FieldSerial, serial).Msg("reclaimed expired serial")
	return nil, nil
}

// Resolve returns the stored link for tag.
func (s *LinkService) Resolve(ctx context.Context, tag string) (*models.Link, error) {
	serial, err := s.decode(tag)
	if err != nil {
		return nil, err
	}

	link, err := s.lookup(ctx, serial)
	if err != nil {
		return nil, err
	}
	if link.Expired(s.now()) {
		s.invalidate(ctx, serial)
		return nil, ErrExpired
	}
	return link, nil
}

// lookup walks L1, then L2, then the store.
func (s *LinkService) lookup(ctx context.Context, serial int64) (*models.Link, error) {
	if link, ok := s.local.Get(serial); ok {
		metrics.CacheHits.WithLabelValues("l1").Inc()
		return &link, nil
	}
	metrics.CacheMisses.WithLabelValues("l1").Inc()

	key := strconv.FormatInt(serial, 10)
	logger := logging.Ctx(ctx)
	if s.remote != nil {
		var link models.Link
		err := s.remote.Get(ctx, key, &link)
		switch {
		case err == nil:
			metrics.CacheHits.WithLabelValues("l2").Inc()
			s.remember(link)
			return &link, nil
		case errors.Is(err, cache.ErrCacheMiss):
			metrics.CacheMisses.WithLabelValues("l2").Inc()
		default:
			// a broken L2 only costs a store round trip
			logger.Warn().Err(err).Int64(logging.FieldSerial, serial).Msg("remote cache get failed")
		}
	}

	link, err := s.store.FindBySerial(ctx, serial)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, ErrNotFound
	}
	tag, err := tagcode.Encode(link.Serial)
	if err != nil {
		return nil, fmt.Errorf("stored serial: %w", err)
	}
	link.Tag = tag

	s.remember(*link)
	if s.remote != nil {
		if err := s.remote.Set(ctx, key, link); err != nil {
			logger.Warn().Err(err).Int64(logging.FieldSerial, serial).Msg("remote cache set failed")
		}
	}
	return link, nil
}

// Delete removes the link for tag.
func (s *LinkService) Delete(ctx context.Context, tag string) error {
	serial, err := s.decode(tag)
	if err != nil {
		return err
	}
	if err := s.store.DeleteBySerial(ctx, serial); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.invalidate(ctx, serial)
	return nil
}

// Inspect decodes tag without touching storage.
func (s *LinkService) Inspect(tag string) (*models.TagInfo, error) {
	serial, err := s.decode(tag)
	if err != nil {
		return nil, err
	}
	return &models.TagInfo{Tag: tag, Canonical: tagcode.Normalize(tag), Serial: serial}, nil
}

// EncodeSerial returns the tag for serial without touching storage.
func (s *LinkService) EncodeSerial(serial int64) (*models.TagInfo, error) {
	tag, err := tagcode.Encode(serial)
	metrics.TagOperations.WithLabelValues("encode", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}
	return &models.TagInfo{Tag: tag, Canonical: tag, Serial: serial}, nil
}

func (s *LinkService) decode(tag string) (int64, error) {
	serial, err := tagcode.Decode(tag)
	metrics.TagOperations.WithLabelValues("decode", metrics.Result(err)).Inc()
	if err != nil {
		return 0, err
	}
	return serial, nil
}

func (s *LinkService) respond(link *models.Link) (*models.ShortenResponse, error) {
	tag, err := tagcode.Encode(link.Serial)
	metrics.TagOperations.WithLabelValues("encode", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}
	link.Tag = tag

	shortURL := tag
	if s.baseURL != "" {
		shortURL = fmt.Sprintf("%s/%s", s.baseURL, tag)
	}
	return &models.ShortenResponse{
		Tag:      tag,
		ShortURL: shortURL,
		Target:   link.Target,
		Serial:   link.Serial,
	}, nil
}

func (s *LinkService) remember(link models.Link) {
	s.local.Put(link.Serial, link)
	metrics.CacheSize.WithLabelValues("l1").Set(float64(s.local.Len()))
}

func (s *LinkService) invalidate(ctx context.Context, serial int64) {
	s.local.Delete(serial)
	metrics.CacheSize.WithLabelValues("l1").Set(float64(s.local.Len()))
	if s.remote == nil {
		return
	}
	if err := s.remote.Delete(ctx, strconv.FormatInt(serial, 10)); err != nil {
		logger := logging.Ctx(ctx)
		logger.Warn().Err(err).Int64(logging.FieldSerial, serial).Msg("remote cache delete failed")
	}
}

// validateURL checks that the URL is syntactically valid and uses http/https.
func validateURL(urlStr string) error {
	if urlStr == "" {
		return ErrInvalidURL
	}
	parsed, err := url.ParseRequestURI(urlStr)
	if err != nil {
		return ErrInvalidURL
	}
	if parsed.Host == "" {
		return ErrInvalidURL
	}
	// restrict to http(s) for redirect safety
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %s", ErrInvalidURL, parsed.Scheme)
	}
	return nil
}
