// Package service contains the business logic layer: validation, rules,
// and orchestration between the HTTP handlers and the executor/storage.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Ard-Skelling/autogen/internal/apperror"
	"github.com/Ard-Skelling/autogen/internal/executor"
	"github.com/Ard-Skelling/autogen/internal/model"
	"github.com/Ard-Skelling/autogen/internal/repository"
)

const (
	MaxBlocks        = 50
	MaxCodeLength    = 100000 // ~100KB per block
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ExecutionService validates execution requests, runs them through a
// CodeExecutor, and records the outcome.
//
// It depends on interfaces, not concrete types, so tests can inject a
// mock executor and repository.
type ExecutionService struct {
	exec   executor.CodeExecutor
	repo   repository.RunRepository
	logger *slog.Logger
}

func NewExecutionService(exec executor.CodeExecutor, repo repository.RunRepository, logger *slog.Logger) *ExecutionService {
	return &ExecutionService{
		exec:   exec,
		repo:   repo,
		logger: logger,
	}
}

// Execute validates the blocks, runs them, and persists a Run record.
//
// Validation happens here rather than in the handler so that every
// caller gets the same rules. Language support is checked up front so a
// request with an unknown language fails before anything runs.
func (s *ExecutionService) Execute(ctx context.Context, blocks []executor.CodeBlock) (*model.Run, error) {
	if len(blocks) == 0 {
		return nil, apperror.ValidationFailed("blocks", "at least one code block is required")
	}
	if len(blocks) > MaxBlocks {
		return nil, apperror.ValidationFailed("blocks",
			fmt.Sprintf("at most %d code blocks per request", MaxBlocks))
	}
	for i := range blocks {
		lang := strings.TrimSpace(blocks[i].Language)
		if lang == "" {
			return nil, apperror.ValidationFailed("language",
				fmt.Sprintf("block %d: language is required", i))
		}
		if !executor.Supported(lang) {
			return nil, apperror.UnsupportedLanguage(lang)
		}
		if len(blocks[i].Code) > MaxCodeLength {
			return nil, apperror.ValidationFailed("code",
				fmt.Sprintf("block %d: code must be %d characters or less", i, MaxCodeLength))
		}
		blocks[i].Language = lang
	}

	start := time.Now()
	result, err := s.exec.ExecuteCodeBlocks(ctx, blocks)
	if err != nil {
		s.logger.Error("execution failed",
			slog.Int("blocks", len(blocks)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	duration := time.Since(start)

	run := &model.Run{
		Language:   blocks[0].Language,
		BlockCount: len(blocks),
		ExitCode:   result.ExitCode,
		Output:     result.Output,
		CodeFile:   result.CodeFile,
		DurationMs: duration.Milliseconds(),
	}

	if err := s.repo.Create(ctx, run); err != nil {
		s.logger.Error("failed to record run",
			slog.Int("exitCode", result.ExitCode),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("recording run: %w", err)
	}

	s.logger.Info("run completed",
		slog.String("id", run.ID),
		slog.Int("exitCode", run.ExitCode),
		slog.Duration("duration", duration),
	)

	return run, nil
}

// GetRun retrieves a recorded run by its ID.
// Returns apperror.ErrNotFound if no such run exists.
func (s *ExecutionService) GetRun(ctx context.Context, id string) (*model.Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "run ID is required")
	}

	return s.repo.GetByID(ctx, id)
}

// ListRuns retrieves recorded runs with pagination, newest first.
func (s *ExecutionService) ListRuns(ctx context.Context, limit, offset int) ([]model.Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	runs, err := s.repo.List(ctx, repository.ListOptions{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error("failed to list runs", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	return runs, nil
}
