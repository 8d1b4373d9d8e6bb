package workers

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/pkg/bus"
)

// recheckPacket is the shape of a request on the rechecks queue. A recheck
// usually happens when someone edits a comment to fix a mistake.
type recheckPacket struct {
	LinkFullname    string `json:"link_fullname"`
	CommentFullname string `json:"comment_fullname"`
}

func (p recheckPacket) validate() []string {
	var errs []string
	if p.LinkFullname == "" {
		errs = append(errs, "link_fullname should be a non-empty str")
	}
	if p.CommentFullname == "" {
		errs = append(errs, "comment_fullname should be a non-empty str")
	}
	return errs
}

// RechecksWorker listens for requests to revisit specific comments and
// dispatches them without deduplication, so edits are re-processed.
type RechecksWorker struct{}

// Name implements Worker
func (w *RechecksWorker) Name() string {
	return "rechecks"
}

// Run implements Worker
func (w *RechecksWorker) Run(ctx context.Context, deps *Deps) error {
	log := deps.Logger.Named(w.Name())
	log.Debug("successfully booted up")

	sub, err := deps.Bus.SubscribeQueue(deps.Config.AMQP.RechecksQueue)
	if err != nil {
		return err
	}
	defer sub.Close()

	d := newDispatcher(deps, w.Name())

	for {
		delivery, err := sub.Next(ctx, bus.InactivityHeartbeat)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if delivery == nil {
			log.Debug("no rechecks lately; still alive")
			continue
		}

		var packet recheckPacket
		if err := json.Unmarshal(delivery.Body, &packet); err != nil {
			log.Warn("received non-json recheck packet", zap.Error(err))
			delivery.Nack(false, false)
			continue
		}
		if errs := packet.validate(); len(errs) > 0 {
			log.Warn("received malformed recheck packet", zap.Strings("errors", errs))
			delivery.Nack(false, false)
			continue
		}

		comment, found, err := deps.Proxy.LookupComment(
			ctx, w.Name(), deps.Version, packet.LinkFullname, packet.CommentFullname)
		if err != nil {
			return err
		}
		if !found {
			log.Info("recheck suppressed; comment could not be fetched",
				zap.String("comment_fullname", packet.CommentFullname),
			)
			delivery.Nack(false, false)
			continue
		}

		if err := d.HandleComment(ctx, comment, false); err != nil {
			return err
		}
		if err := delivery.Ack(false); err != nil {
			return err
		}
	}
}
