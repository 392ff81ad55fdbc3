package shortener

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sundayezeilo/shorttag/internal/directory"
	"github.com/sundayezeilo/shorttag/internal/errx"
	"github.com/sundayezeilo/shorttag/internal/tagcheck"
	"github.com/sundayezeilo/shorttag/sluggen"
)

const (
	MinTagLength            = 2
	MaxTagLength            = 64
	DefaultGenerateAttempts = 1
	MaxGenerateAttempts     = 10
)

// Service binds URLs to tags and resolves tags back to URLs.
type Service interface {
	// Shorten binds url to customTag, or to a generated tag when customTag
	// is blank after whitespace removal.
	Shorten(ctx context.Context, url, customTag string) (Result, error)
	// Resolve returns the URL bound to tag and records a usage event for
	// clientAddr in the background.
	Resolve(ctx context.Context, tag, clientAddr string) (string, error)
}

type service struct {
	dir       directory.Directory
	cache     Cache
	validator *tagcheck.Validator
	generator sluggen.Generator
	clientIDs ClientIdentifier
	emitter   UsageEmitter
	logger    *slog.Logger

	domain    string
	tagLength int
	attempts  int
}

// ServiceConfig holds the collaborators and settings of the service.
// Directory and Cache are required.
type ServiceConfig struct {
	Directory directory.Directory
	Cache     Cache
	Validator *tagcheck.Validator
	Generator sluggen.Generator
	ClientIDs ClientIdentifier
	Emitter   UsageEmitter
	Logger    *slog.Logger

	// Domain prefixes every short URL, e.g. "https://sho.rt".
	Domain    string
	TagLength int
	// GenerateAttempts is how many random tags are tried before a collision
	// is reported. Custom tags are tried exactly once.
	GenerateAttempts int
}

// NewService creates a new service instance.
func NewService(cfg ServiceConfig) Service {
	validator := cfg.Validator
	if validator == nil {
		validator = tagcheck.New()
	}

	generator := cfg.Generator
	if generator == nil {
		generator = sluggen.NewNanoID()
	}

	tagLength := cfg.TagLength
	if tagLength < MinTagLength || tagLength > MaxTagLength {
		tagLength = sluggen.DefaultLength
	}

	attempts := cfg.GenerateAttempts
	if attempts <= 0 || attempts > MaxGenerateAttempts {
		attempts = DefaultGenerateAttempts
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &service{
		dir:       cfg.Directory,
		cache:     cfg.Cache,
		validator: validator,
		generator: generator,
		clientIDs: cfg.ClientIDs,
		emitter:   cfg.Emitter,
		logger:    logger,
		domain:    strings.TrimRight(cfg.Domain, "/"),
		tagLength: tagLength,
		attempts:  attempts,
	}
}

func (s *service) Shorten(ctx context.Context, url, customTag string) (Result, error) {
	const op = "shortener.service.Shorten"

	if !tagcheck.IsValidURL(url) {
		return Result{}, errx.E(op, errx.Invalid, ErrInvalidURL)
	}
	if s.validator.HostBlocked(url) {
		return Result{}, errx.E(op, errx.Invalid, ErrBlockedHost)
	}

	// Custom tag path: validate and bind once
	if tag := tagcheck.Normalize(customTag); tag != "" {
		if err := s.validator.Validate(tag, true).Err(); err != nil {
			return Result{}, errx.E(op, errx.Invalid, err)
		}
		if err := s.bind(ctx, tag, url); err != nil {
			return Result{}, errx.E(op, errx.KindOf(err), err)
		}
		return s.result(tag, url), nil
	}

	// Generated tag path: a collision is only retried when configured
	var lastErr error
	for range s.attempts {
		tag, err := s.generator.Generate(s.tagLength)
		if err != nil {
			return Result{}, errx.E(op, errx.Internal, err)
		}
		if err := s.validator.Validate(tag, false).Err(); err != nil {
			return Result{}, errx.E(op, errx.Internal, err)
		}

		err = s.bind(ctx, tag, url)
		if err == nil {
			return s.result(tag, url), nil
		}
		if errx.KindOf(err) != errx.Conflict {
			return Result{}, errx.E(op, errx.KindOf(err), err)
		}
		s.logger.DebugContext(ctx, "generated tag collided", "tag", tag)
		lastErr = err
	}

	return Result{}, errx.E(op, errx.Conflict, lastErr)
}

// bind writes tag→url when tag is unbound and then caches it. The existence
// check is repeated atomically by SetIfAbsent when the directory has it.
func (s *service) bind(ctx context.Context, tag, url string) error {
	const op = "shortener.service.bind"

	exists, err := s.dir.Exists(ctx, tag)
	if err != nil {
		return errx.E(op, kindOr(err, errx.Unavailable), err)
	}
	if exists {
		return errx.E(op, errx.Conflict, ErrTagExists)
	}

	if cs, ok := s.dir.(directory.ConditionalSetter); ok {
		inserted, err := cs.SetIfAbsent(ctx, tag, url)
		if err != nil {
			return errx.E(op, kindOr(err, errx.Unavailable), err)
		}
		if !inserted {
			return errx.E(op, errx.Conflict, ErrTagExists)
		}
	} else if err := s.dir.Set(ctx, tag, url); err != nil {
		return errx.E(op, kindOr(err, errx.Unavailable), err)
	}

	s.cache.Set(tag, url, 0)
	return nil
}

func (s *service) Resolve(ctx context.Context, tag, clientAddr string) (string, error) {
	const op = "shortener.service.Resolve"

	if tag == "" || tagcheck.HasReserved(tag) {
		return "", errx.E(op, errx.Invalid, ErrBadTag)
	}

	if url, ok := s.cache.Get(tag); ok {
		s.emit(ctx, clientAddr, url)
		return url, nil
	}

	url, err := s.dir.Get(ctx, tag)
	if err != nil {
		return "", errx.E(op, kindOr(err, errx.Unavailable), err)
	}

	s.cache.Set(tag, url, 0)
	s.emit(ctx, clientAddr, url)
	return url, nil
}

func (s *service) emit(ctx context.Context, clientAddr, url string) {
	if s.emitter == nil {
		return
	}
	var clientID string
	if s.clientIDs != nil {
		clientID = s.clientIDs.Derive(clientAddr)
	}
	s.emitter.Emit(ctx, clientID, url)
}

func (s *service) result(tag, url string) Result {
	return Result{Tag: tag, URL: url, ShortURL: s.domain + "/" + tag}
}

// kindOr keeps the kind of an errx error and falls back to def for plain errors.
func kindOr(err error, def errx.Kind) errx.Kind {
	if k := errx.KindOf(err); k != errx.Unknown {
		return k
	}
	return def
}
