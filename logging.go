package codechat

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"
)

func LoggingMiddleware(log *zap.Logger) ServiceMiddleware {
	log = log.With(
		zap.String("service", "codechat"),
	)

	return func(next Service) Service {
		log.Info("service initialized")

		return &loggingMiddleware{
			log:  log,
			next: next,
		}
	}
}

type loggingMiddleware struct {
	log  *zap.Logger
	next Service
}

func (mw *loggingMiddleware) Close() error {
	log := mw.log.With(
		zap.String("action", "close"),
	)

	err := mw.next.Close()
	if err != nil {
		log.Error(err.Error())
		return err
	}

	log.Info("service closed")
	return nil
}

func (mw *loggingMiddleware) Retrieve(ctx context.Context, query string, k ...int) ([]Chunk, error) {
	log := mw.log.With(
		zap.String("action", "retrieve"),
		zap.String("query", query),
	)

	if len(k) > 0 {
		log = log.With(
			zap.Int("k", k[0]),
		)
	}

	chunks, err := mw.next.Retrieve(ctx, query, k...)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("chunks retrieved", zap.Int("count", len(chunks)))
	return chunks, nil
}

func (mw *loggingMiddleware) Ask(ctx context.Context, question string, k ...int) (Stream, error) {
	log := mw.log.With(
		zap.String("action", "ask"),
		zap.String("question", question),
	)

	if len(k) > 0 {
		log = log.With(
			zap.Int("k", k[0]),
		)
	}

	stream, err := mw.next.Ask(ctx, question, k...)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	return &loggingStream{
		log:    log,
		next:   stream,
		counts: make(map[Field]int),
		start:  time.Now(),
	}, nil
}

type loggingStream struct {
	log    *zap.Logger
	next   Stream
	counts map[Field]int
	start  time.Time
	done   bool
}

func (s *loggingStream) Recv() (Fragment, error) {
	f, err := s.next.Recv()
	if err != nil {
		if s.done {
			return f, err
		}

		s.done = true

		if errors.Is(err, io.EOF) {
			s.log.Info("answer streamed",
				zap.Int("context", s.counts[FieldContext]),
				zap.Int("answer", s.counts[FieldAnswer]),
				zap.Duration("elapsed", time.Since(s.start)),
			)
		} else {
			s.log.Error(err.Error())
		}

		return f, err
	}

	s.counts[f.Field]++
	return f, nil
}

func (s *loggingStream) Close() error {
	return s.next.Close()
}
