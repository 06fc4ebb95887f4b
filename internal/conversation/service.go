package conversation

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/npezzotti/go-dm/internal/database"
	"github.com/npezzotti/go-dm/internal/media"
	"github.com/npezzotti/go-dm/internal/server"
	"github.com/npezzotti/go-dm/internal/stats"
	"github.com/npezzotti/go-dm/internal/types"
	"github.com/samber/lo"
)

// Deliverer pushes a lifecycle event to the online participants of a message.
type Deliverer interface {
	Deliver(kind server.Lifecycle, msg types.Message) int
}

type SendRequest struct {
	Text  string `json:"text" validate:"required_without=Image,max=4000"`
	Image string `json:"image" validate:"required_without=Text"`
}

type EditRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

// Service runs the message handlers. Each mutation commits to the store before
// its event is handed to the delivery router.
type Service struct {
	log      *log.Logger
	db       database.Repository
	delivery Deliverer
	uploader media.Uploader
	stats    stats.StatsProvider
	validate *validator.Validate
}

func NewService(logger *log.Logger, db database.Repository, delivery Deliverer, uploader media.Uploader, su stats.StatsProvider) *Service {
	return &Service{
		log:      logger,
		db:       db,
		delivery: delivery,
		uploader: uploader,
		stats:    su,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Validate checks req against its struct tags and reports the first failure.
func (s *Service) Validate(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required", "required_without":
			if field == "image" {
				field = "text"
			}
			return &database.ValidationError{Field: field, Reason: "text or image is required"}
		case "max":
			return &database.ValidationError{Field: field, Reason: "must be at most " + fe.Param() + " characters"}
		default:
			return &database.ValidationError{Field: field, Reason: "failed " + fe.Tag() + " validation"}
		}
	}

	return &database.ValidationError{Reason: err.Error()}
}

// ListPartners returns every account except the viewer alongside unseen counts
// keyed by sender. Senders with nothing unseen are absent from the map.
func (s *Service) ListPartners(ctx context.Context, viewerId string) ([]types.User, map[string]int, error) {
	accounts, err := s.db.ListAccountsExcept(ctx, viewerId)
	if err != nil {
		return nil, nil, s.logged("list partners", err)
	}

	counts, err := s.db.ListUnseenCounts(ctx, viewerId)
	if err != nil {
		return nil, nil, s.logged("list unseen counts", err)
	}

	return lo.Map(accounts, func(u database.User, _ int) types.User { return toUser(u) }), counts, nil
}

// ListMessages returns the conversation between viewer and partner in creation
// order. Messages the partner sent the viewer are marked seen first and the
// partner is told about each one.
func (s *Service) ListMessages(ctx context.Context, viewerId, partnerId string) ([]types.Message, error) {
	changed, err := s.db.MarkAllSeenFrom(ctx, partnerId, viewerId)
	if err != nil {
		return nil, s.logged("mark conversation seen", err)
	}

	for _, msg := range changed {
		s.delivery.Deliver(server.SeenMarked, toMessage(msg))
	}

	messages, err := s.db.ListMessagesBetween(ctx, viewerId, partnerId)
	if err != nil {
		return nil, s.logged("list messages", err)
	}

	return lo.Map(messages, func(m database.Message, _ int) types.Message { return toMessage(m) }), nil
}

// Send stores a message from sender to receiver and notifies the receiver.
func (s *Service) Send(ctx context.Context, senderId, receiverId string, req SendRequest) (types.Message, error) {
	if err := s.Validate(req); err != nil {
		return types.Message{}, err
	}

	if _, err := s.db.GetAccountById(ctx, receiverId); err != nil {
		return types.Message{}, s.logged("get receiver", err)
	}

	params := database.CreateMessageParams{
		SenderId:   senderId,
		ReceiverId: receiverId,
	}
	if strings.TrimSpace(req.Text) != "" {
		params.Text = &req.Text
	}

	if image := strings.TrimSpace(req.Image); image != "" {
		ref, err := s.uploader.Upload(ctx, image)
		if err != nil {
			if errors.Is(err, media.ErrInvalidImage) {
				return types.Message{}, &database.ValidationError{Field: "image", Reason: err.Error()}
			}
			return types.Message{}, s.logged("upload image", &database.UpstreamError{Op: "upload image", Err: err})
		}
		params.Image = &ref
	}

	stored, err := s.db.CreateMessage(ctx, params)
	if err != nil {
		if params.Image != nil {
			if rmErr := s.uploader.Remove(context.WithoutCancel(ctx), *params.Image); rmErr != nil {
				s.log.Printf("discard image %s: %v", *params.Image, rmErr)
			}
		}
		return types.Message{}, s.logged("create message", err)
	}
	s.stats.Incr(server.MetricMessagesCreated)

	msg := toMessage(stored)
	s.delivery.Deliver(server.Created, msg)

	return msg, nil
}

// MarkSeen marks one message seen on behalf of its receiver and notifies the
// sender. Marking an already seen message changes nothing.
func (s *Service) MarkSeen(ctx context.Context, viewerId, messageId string) (types.Message, error) {
	current, err := s.db.GetMessageById(ctx, messageId)
	if err != nil {
		return types.Message{}, s.logged("get message", err)
	}

	if current.ReceiverId != viewerId {
		return types.Message{}, database.ErrForbidden
	}
	if current.Seen {
		return toMessage(current), nil
	}

	updated, err := s.db.MarkMessageSeen(ctx, messageId)
	if err != nil {
		return types.Message{}, s.logged("mark message seen", err)
	}

	msg := toMessage(updated)
	s.delivery.Deliver(server.SeenMarked, msg)

	return msg, nil
}

// Edit replaces the text of a message owned by requester and notifies both
// participants.
func (s *Service) Edit(ctx context.Context, requesterId, messageId string, req EditRequest) (types.Message, error) {
	if err := s.Validate(req); err != nil {
		return types.Message{}, err
	}

	updated, err := s.db.UpdateMessageText(ctx, messageId, requesterId, req.Text)
	if err != nil {
		return types.Message{}, s.logged("update message", err)
	}

	msg := toMessage(updated)
	s.delivery.Deliver(server.Updated, msg)

	return msg, nil
}

// Delete removes a message owned by requester and notifies both participants.
func (s *Service) Delete(ctx context.Context, requesterId, messageId string) (types.Message, error) {
	removed, err := s.db.DeleteMessage(ctx, messageId, requesterId)
	if err != nil {
		return types.Message{}, s.logged("delete message", err)
	}

	msg := toMessage(removed)
	s.delivery.Deliver(server.Deleted, msg)

	return msg, nil
}

// logged records store failures. Expected outcomes pass through quietly.
func (s *Service) logged(op string, err error) error {
	if errors.Is(err, database.ErrUpstream) {
		s.log.Printf("%s: %v", op, err)
	}
	return err
}

func toUser(u database.User) types.User {
	return types.User{
		Id:        u.Id,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func toMessage(m database.Message) types.Message {
	return types.Message{
		Id:         m.Id,
		SenderId:   m.SenderId,
		ReceiverId: m.ReceiverId,
		Text:       m.Text,
		Image:      m.Image,
		Seen:       m.Seen,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}
