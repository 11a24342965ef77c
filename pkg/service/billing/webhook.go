package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fgb-andu/reelprompt-api/pkg/domain"
	"github.com/fgb-andu/reelprompt-api/pkg/repository/userprovider"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"
)

// WebhookResult describes what an acknowledged event did.
type WebhookResult struct {
	EventType string
	Handled   bool
	Outcome   string
}

// eventRef is what an event tells us about whose status to change.
type eventRef struct {
	customerID string
	userID     string
	planID     string
}

// HandleWebhook verifies and applies a billing event. It returns
// ErrInvalidSignature or ErrInvalidPayload for requests that should not be
// retried, and ErrStatusUpdate when the provider should deliver the event
// again. Unknown event types are acknowledged without change.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := s.constructEvent(payload, signature)
	if err != nil {
		return nil, err
	}
	log := s.log.With(zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))

	var target domain.SubscriptionStatus
	var ref eventRef
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		err = unmarshalObject(event, &sess)
		if sess.Customer != nil {
			ref.customerID = sess.Customer.ID
		}
		ref.userID = sess.ClientReferenceID
		if ref.userID == "" {
			ref.userID = sess.Metadata["user_id"]
		}
		ref.planID = sess.Metadata["plan_id"]
		target = domain.SubscriptionPro
		if ref.planID == PlanLifetime {
			target = domain.SubscriptionLifetime
		}
	case stripe.EventTypeInvoicePaymentSucceeded, stripe.EventTypeInvoicePaymentFailed:
		var inv stripe.Invoice
		err = unmarshalObject(event, &inv)
		if inv.Customer != nil {
			ref.customerID = inv.Customer.ID
		}
		target = domain.SubscriptionPro
		if event.Type == stripe.EventTypeInvoicePaymentFailed {
			target = domain.SubscriptionFree
		}
	case stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		err = unmarshalObject(event, &sub)
		if sub.Customer != nil {
			ref.customerID = sub.Customer.ID
		}
		target = domain.SubscriptionFree
	default:
		log.Info("ignoring unhandled billing event")
		return &WebhookResult{EventType: string(event.Type)}, nil
	}

	entry := AuditEntry{
		EventID:    event.ID,
		EventType:  string(event.Type),
		CustomerID: ref.customerID,
		UserID:     ref.userID,
		Status:     string(target),
		Timestamp:  s.now(),
	}
	if err != nil {
		entry.Outcome = OutcomeInvalidPayload
		entry.Error = err.Error()
		s.record(ctx, entry)
		log.Warn("unreadable billing event object", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	outcome, err := s.applyStatus(ctx, ref, target, &entry)
	entry.Outcome = outcome
	if err != nil {
		entry.Error = err.Error()
	}
	s.record(ctx, entry)

	switch outcome {
	case OutcomeUpdateFailed:
		log.Error("subscription status update failed", zap.String("customer_id", ref.customerID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStatusUpdate, err)
	case OutcomeCustomerNotFound:
		log.Warn("billing event for unknown customer", zap.String("customer_id", ref.customerID), zap.String("user_id", ref.userID))
	default:
		log.Info("billing event applied", zap.String("user_id", entry.UserID), zap.String("status", string(target)), zap.String("outcome", outcome))
	}
	return &WebhookResult{EventType: string(event.Type), Handled: true, Outcome: outcome}, nil
}

func (s *Service) constructEvent(payload []byte, signature string) (stripe.Event, error) {
	if s.cfg.WebhookSecret == "" {
		var event stripe.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		s.log.Warn("accepting unverified billing event", zap.String("event_id", event.ID))
		return event, nil
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		s.log.Warn("webhook signature verification failed", zap.Error(err))
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}

// applyStatus resolves the user behind ref and sets target. A lifetime
// purchase is never undone by subscription events.
func (s *Service) applyStatus(ctx context.Context, ref eventRef, target domain.SubscriptionStatus, entry *AuditEntry) (string, error) {
	user, err := s.resolveUser(ctx, ref)
	if errors.Is(err, userprovider.ErrUserNotFound) {
		return OutcomeCustomerNotFound, nil
	}
	if err != nil {
		return OutcomeUpdateFailed, err
	}
	entry.UserID = user.ID

	if user.SubscriptionStatus == target ||
		(user.SubscriptionStatus == domain.SubscriptionLifetime && target != domain.SubscriptionLifetime) {
		return OutcomeUnchanged, nil
	}

	if err := s.users.SetSubscriptionStatus(ctx, user.ID, target); err != nil {
		return OutcomeUpdateFailed, err
	}
	return OutcomeUpdated, nil
}

// resolveUser finds the user by customer id, falling back to the user id a
// checkout carried. The fallback links the customer for later events.
func (s *Service) resolveUser(ctx context.Context, ref eventRef) (*domain.User, error) {
	if ref.customerID != "" {
		user, err := s.users.GetUserByStripeCustomerID(ctx, ref.customerID)
		if err == nil || !errors.Is(err, userprovider.ErrUserNotFound) {
			return user, err
		}
	}
	if ref.userID == "" {
		return nil, userprovider.ErrUserNotFound
	}

	user, err := s.users.GetUser(ctx, ref.userID)
	if err != nil {
		return nil, err
	}
	if ref.customerID != "" && (user.StripeCustomerID == nil || *user.StripeCustomerID == "") {
		if err := s.users.SetStripeCustomerID(ctx, user.ID, ref.customerID); err != nil {
			return nil, err
		}
		user.StripeCustomerID = &ref.customerID
	}
	return user, nil
}

func (s *Service) record(ctx context.Context, e AuditEntry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, e); err != nil {
		s.log.Error("failed to write billing audit entry", zap.String("event_id", e.EventID), zap.Error(err))
	}
}

func unmarshalObject(event stripe.Event, v any) error {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return errors.New("event has no data object")
	}
	return json.Unmarshal(event.Data.Raw, v)
}
