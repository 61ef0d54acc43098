package queue

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Server runs the asynq worker for background tasks.
type Server struct {
	srv *asynq.Server
	mux *asynq.ServeMux
	log zerolog.Logger
}

func NewServer(redisOpt asynq.RedisConnOpt, concurrency int, h *Handler, log zerolog.Logger) *Server {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueNotifications: 1,
		},
		Logger:   zerologAdapter{log: log},
		LogLevel: asynq.WarnLevel,
	})
	return &Server{srv: srv, mux: NewMux(h), log: log}
}

// NewMux routes task types to handler methods.
func NewMux(h *Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeDeliverNotification, h.HandleDeliverNotification)
	return mux
}

// Start begins processing in background goroutines.
func (s *Server) Start() error {
	if err := s.srv.Start(s.mux); err != nil {
		return fmt.Errorf("start asynq server: %w", err)
	}
	s.log.Info().Msg("queue worker started")
	return nil
}

// Shutdown waits for in-flight tasks and stops the worker.
func (s *Server) Shutdown() {
	s.srv.Shutdown()
	s.log.Info().Msg("queue worker stopped")
}

// zerologAdapter satisfies asynq.Logger.
type zerologAdapter struct {
	log zerolog.Logger
}

func (a zerologAdapter) Debug(args ...interface{}) { a.log.Debug().Msg(fmt.Sprint(args...)) }
func (a zerologAdapter) Info(args ...interface{})  { a.log.Info().Msg(fmt.Sprint(args...)) }
func (a zerologAdapter) Warn(args ...interface{})  { a.log.Warn().Msg(fmt.Sprint(args...)) }
func (a zerologAdapter) Error(args ...interface{}) { a.log.Error().Msg(fmt.Sprint(args...)) }
func (a zerologAdapter) Fatal(args ...interface{}) { a.log.Fatal().Msg(fmt.Sprint(args...)) }
