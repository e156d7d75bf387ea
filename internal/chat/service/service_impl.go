package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/parleylabs/parley/internal/account/domain"
	"github.com/parleylabs/parley/internal/chat/domain"
	"github.com/parleylabs/parley/internal/clock"
	obsmetrics "github.com/parleylabs/parley/internal/observability/metrics"
	"github.com/parleylabs/parley/internal/providers/completion"
	"github.com/parleylabs/parley/internal/providers/imagegen"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Accounts   accountdomain.Service
	Repo       domain.Repository
	Completion completion.Client
	ImageGen   imagegen.Client
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	accounts   accountdomain.Service
	repo       domain.Repository
	completion completion.Client
	imageGen   imagegen.Client
	metrics    *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("chat.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		accounts:   p.Accounts,
		repo:       p.Repo,
		completion: p.Completion,
		imageGen:   p.ImageGen,
		metrics:    p.Metrics,
	}
}

func (s *Service) Send(ctx context.Context, req domain.SendMessageRequest) (domain.SendMessageResponse, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return domain.SendMessageResponse{}, domain.ErrInvalidContent
	}

	account, err := s.accounts.Resolve(ctx, req.ExternalID)
	if err != nil {
		return domain.SendMessageResponse{}, err
	}

	if !req.UserOriginated {
		turn, err := s.append(ctx, account.ID, content, domain.OriginatorAssistant, nil)
		if err != nil {
			return domain.SendMessageResponse{}, err
		}
		return domain.SendMessageResponse{AssistantTurn: &turn}, nil
	}

	// Quota check and increment are a single conditional update on the
	// account row; a rejected turn persists nothing.
	if err := s.accounts.RecordUserTurn(ctx, account.ID); err != nil {
		return domain.SendMessageResponse{}, err
	}

	userTurn, err := s.append(ctx, account.ID, content, domain.OriginatorUser, req.Attachments)
	if err != nil {
		return domain.SendMessageResponse{}, err
	}

	history, err := s.repo.ListByAccount(ctx, s.db, account.ID)
	if err != nil {
		return domain.SendMessageResponse{}, err
	}

	reply, err := s.completion.Complete(ctx, completion.Request{
		Turns:       toCompletionTurns(history),
		Attachments: req.Attachments,
	})
	if err != nil {
		s.metrics.RecordCompletion(ctx, "error")
		return domain.SendMessageResponse{}, err
	}
	s.metrics.RecordCompletion(ctx, "ok")

	assistantTurn, err := s.append(ctx, account.ID, reply, domain.OriginatorAssistant, nil)
	if err != nil {
		return domain.SendMessageResponse{}, err
	}

	return domain.SendMessageResponse{
		UserTurn:      &userTurn,
		AssistantTurn: &assistantTurn,
	}, nil
}

func (s *Service) History(ctx context.Context, externalID string) ([]domain.ChatTurn, error) {
	account, err := s.accounts.Lookup(ctx, externalID)
	if err != nil {
		return nil, err
	}

	turns, err := s.repo.ListByAccount(ctx, s.db, account.ID)
	if err != nil {
		return nil, err
	}
	if turns == nil {
		turns = []domain.ChatTurn{}
	}
	return turns, nil
}

func (s *Service) GenerateImage(ctx context.Context, externalID, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", domain.ErrInvalidPrompt
	}

	account, err := s.accounts.Resolve(ctx, externalID)
	if err != nil {
		return "", err
	}

	if err := s.accounts.RecordUserTurn(ctx, account.ID); err != nil {
		return "", err
	}

	return s.imageGen.Generate(ctx, prompt)
}

func (s *Service) append(ctx context.Context, accountID snowflake.ID, content string, originator domain.Originator, attachments []completion.Attachment) (domain.ChatTurn, error) {
	turn := domain.ChatTurn{
		ID:         s.genID.Generate(),
		AccountID:  accountID,
		Content:    content,
		Originator: originator,
		CreatedAt:  s.clock.Now(),
	}
	if len(attachments) > 0 {
		payload, err := json.Marshal(attachments)
		if err != nil {
			return domain.ChatTurn{}, err
		}
		turn.Attachments = datatypes.JSON(payload)
	}
	if err := s.repo.Insert(ctx, s.db, &turn); err != nil {
		return domain.ChatTurn{}, err
	}
	s.metrics.RecordChatTurn(ctx, string(originator))
	return turn, nil
}

func toCompletionTurns(turns []domain.ChatTurn) []completion.Turn {
	out := make([]completion.Turn, 0, len(turns))
	for _, turn := range turns {
		role := completion.RoleUser
		if turn.Originator == domain.OriginatorAssistant {
			role = completion.RoleAssistant
		}
		out = append(out, completion.Turn{Role: role, Content: turn.Content})
	}
	return out
}
