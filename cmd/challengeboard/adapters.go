package main

import (
	"digital.vasic.challengeboard/pkg/engine"
	"digital.vasic.challengeboard/pkg/logging"
	"digital.vasic.challengeboard/pkg/reward"
	"digital.vasic.challengeboard/pkg/webhook"
)

// logNotifier writes participant notices to the log.
type logNotifier struct {
	logger logging.Logger
}

func (n logNotifier) Notify(participant string, notice engine.Notice) {
	fields := []logging.Field{
		logging.ParticipantField(participant),
		logging.StringField("kind", string(notice.Kind)),
	}
	if notice.List != "" {
		fields = append(fields, logging.ListField(notice.List))
	}
	if notice.Challenge != "" {
		fields = append(fields, logging.ChallengeField(string(notice.Challenge)))
	}
	if notice.Token != "" {
		fields = append(fields,
			logging.StringField("token", notice.Token),
			logging.ChallengeField(string(notice.Replacing)),
		)
	}
	n.logger.Info("notice", fields...)
}

// notifiers delivers each notice to every member in order.
type notifiers []engine.Notifier

func (ns notifiers) Notify(participant string, notice engine.Notice) {
	for _, n := range ns {
		n.Notify(participant, notice)
	}
}

// outbound holds where notices and rewards leave the engine.
// hook is nil unless a webhook is configured.
type outbound struct {
	notifier engine.Notifier
	rewards  *reward.Registry
	hook     *webhook.Notifier
}

// outbound logs notices and rewards. With a webhook URL, notices
// are also queued for the game server and every reward is posted
// to it.
func (a *app) outbound() outbound {
	out := outbound{
		notifier: logNotifier{a.logger},
		rewards:  reward.NewRegistry(),
	}
	out.rewards.SetFallback(reward.Log(a.logger))

	cfg := a.cfg
	if cfg.WebhookURL == "" {
		return out
	}
	client := webhook.NewClient(cfg.WebhookURL,
		webhook.WithToken(cfg.WebhookToken),
		webhook.WithTimeout(cfg.WebhookTimeout),
	)
	out.hook = webhook.NewNotifier(client, webhook.WithLogger(a.logger))
	out.notifier = notifiers{out.notifier, out.hook}
	out.rewards.SetFallback(webhook.Rewards(client))
	return out
}
