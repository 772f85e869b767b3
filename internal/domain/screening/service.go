package screening

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/llm"
)

// llmTimeout bounds each model call so a slow provider falls back quickly.
const llmTimeout = 20 * time.Second

var errSessionCompleted = fmt.Errorf("%w: screening session is already completed", apperr.ErrInvalidTransition)

type Service struct {
	repo   Repository
	llm    llm.Completer
	logger zerolog.Logger
}

// NewService creates the screening service. A nil completer makes every
// session use the static questions and summary.
func NewService(repo Repository, completer llm.Completer, logger zerolog.Logger) *Service {
	return &Service{repo: repo, llm: completer, logger: logger}
}

func (s *Service) ask(ctx context.Context, msgs []llm.Message, maxTokens int, v interface{}) error {
	if s.llm == nil {
		return errors.New("llm not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()
	return llm.CompleteJSON(ctx, s.llm, msgs, llm.Options{Temperature: 0.3, MaxTokens: maxTokens}, v)
}

func (s *Service) nextQuestion(ctx context.Context, sess *Session) string {
	var out struct {
		Question string `json:"question"`
	}
	err := s.ask(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: questionPrompt(sess)},
	}, 200, &out)
	if err == nil && strings.TrimSpace(out.Question) != "" {
		return strings.TrimSpace(out.Question)
	}
	if err == nil {
		err = errors.New("empty question")
	}
	s.logger.Warn().Err(err).Str("session_id", sess.ID.String()).Int("stage", sess.Stage).Msg("using fallback screening question")
	sess.UsedFallback = true
	return fallbackQuestions[sess.Stage]
}

func (s *Service) diagnose(ctx context.Context, sess *Session) *Diagnosis {
	var d Diagnosis
	err := s.ask(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: diagnosisPrompt(sess)},
	}, 600, &d)
	if err == nil && strings.TrimSpace(d.Summary) != "" {
		escalate(sess, &d)
		return &d
	}
	if err == nil {
		err = errors.New("empty summary")
	}
	s.logger.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("using fallback screening summary")
	sess.UsedFallback = true
	return fallbackDiagnosis(sess)
}

// Start opens a session at stage 0 with the first question.
func (s *Service) Start(ctx context.Context, patientID uuid.UUID, req StartRequest) (*Session, error) {
	complaint := strings.TrimSpace(req.ChiefComplaint)
	if complaint == "" {
		return nil, apperr.Validation("chief_complaint is required")
	}
	if len(complaint) > 500 {
		return nil, apperr.Validation("chief_complaint must be at most 500 characters")
	}

	sess := &Session{
		PatientID:       patientID,
		Stage:           0,
		Status:          StatusActive,
		ChiefComplaint:  complaint,
		Transcript:      []Turn{},
		CurrentQuestion: fallbackQuestions[0],
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	s.logger.Info().Str("session_id", sess.ID.String()).Msg("screening started")
	return sess, nil
}

// Answer records the answer to the current question and advances the
// session. The fifth answer completes it with a diagnosis.
func (s *Service) Answer(ctx context.Context, patientID uuid.UUID, req AnswerRequest) (*Session, error) {
	answer := strings.TrimSpace(req.Answer)
	if answer == "" {
		return nil, apperr.Validation("answer is required")
	}
	if len(answer) > 2000 {
		return nil, apperr.Validation("answer must be at most 2000 characters")
	}

	sess, err := s.get(ctx, patientID, auth.RolePatient, req.SessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == StatusCompleted || sess.Stage >= MaxStage {
		return nil, errSessionCompleted
	}

	prev := sess.Stage
	sess.Transcript = append(sess.Transcript, Turn{Question: sess.CurrentQuestion, Answer: answer})
	sess.Stage++

	if sess.Stage < MaxStage {
		sess.CurrentQuestion = s.nextQuestion(ctx, sess)
	} else {
		sess.Diagnosis = s.diagnose(ctx, sess)
		sess.CurrentQuestion = ""
		sess.Status = StatusCompleted
	}

	if err := s.repo.Update(ctx, sess, prev); err != nil {
		return nil, err
	}
	if sess.Status == StatusCompleted {
		s.logger.Info().
			Str("session_id", sess.ID.String()).
			Str("urgency", sess.Diagnosis.Urgency).
			Bool("fallback", sess.UsedFallback).
			Msg("screening completed")
	}
	return sess, nil
}

func (s *Service) get(ctx context.Context, userID uuid.UUID, role string, id uuid.UUID) (*Session, error) {
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if role != auth.RoleAdmin && sess.PatientID != userID {
		return nil, apperr.NotFound("screening session")
	}
	return sess, nil
}

func (s *Service) Get(ctx context.Context, userID uuid.UUID, role string, id uuid.UUID) (*Session, error) {
	return s.get(ctx, userID, role, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Session, int, error) {
	if f.Status != "" && f.Status != StatusActive && f.Status != StatusCompleted {
		return nil, 0, apperr.Validation("invalid status %q", f.Status)
	}
	return s.repo.List(ctx, f)
}

func (s *Service) CountActive(ctx context.Context) (int, error) {
	return s.repo.CountActive(ctx)
}
