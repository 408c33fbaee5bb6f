package chatbot

import (
	"context"
	"regexp"
	"strings"

	"whatsapp-console/internal/dispatch"
	"whatsapp-console/internal/models"
	"whatsapp-console/internal/store"

	"go.uber.org/zap"
)

// Engine evaluates a channel's auto-reply rules against inbound text and
// answers through the dispatch pipeline, so auto-replies get the same audit
// trail as operator sends. Rules run in priority DESC order (10 beats 1);
// the first match fires and evaluation stops.
type Engine struct {
	store      *store.Store
	dispatcher *dispatch.Dispatcher
	logger     *zap.Logger
}

func NewEngine(st *store.Store, dispatcher *dispatch.Dispatcher, logger *zap.Logger) *Engine {
	return &Engine{store: st, dispatcher: dispatcher, logger: logger}
}

// OnInboundText implements reconcile.AutoResponder.
func (e *Engine) OnInboundText(ctx context.Context, channel *models.Channel, contact *models.Contact, body string) {
	rules, err := e.store.ActiveChatbotRules(ctx, channel.ID)
	if err != nil {
		e.logger.Error("failed to load chatbot rules", zap.Uint("channel_id", channel.ID), zap.Error(err))
		return
	}

	for _, rule := range rules {
		if !matches(&rule, body) {
			continue
		}
		e.logger.Info("chatbot rule matched",
			zap.Uint("rule_id", rule.ID),
			zap.String("rule", rule.Name),
			zap.Uint("contact_id", contact.ID),
		)
		e.respond(ctx, &rule, channel, contact)
		return
	}
}

// matches checks the trigger. Keyword triggers are case-insensitive
// substring matches; regex triggers compile the pattern; time triggers are
// not fired from the inbound path.
func matches(rule *models.ChatbotRule, body string) bool {
	switch rule.TriggerType {
	case "keyword":
		return strings.Contains(strings.ToLower(body), strings.ToLower(strings.TrimSpace(rule.Trigger)))
	case "regex":
		re, err := regexp.Compile(rule.Trigger)
		if err != nil {
			return false
		}
		return re.MatchString(body)
	default:
		return false
	}
}

func (e *Engine) respond(ctx context.Context, rule *models.ChatbotRule, channel *models.Channel, contact *models.Contact) {
	req := &dispatch.SendRequest{
		ChannelID: channel.ID,
		ContactID: contact.ID,
		Type:      models.TypeText,
		Content:   rule.Response,
	}
	if rule.ResponseType == "template" && rule.TemplateID != nil {
		template, err := e.store.Template(ctx, *rule.TemplateID)
		if err != nil {
			e.logger.Error("chatbot rule references missing template",
				zap.Uint("rule_id", rule.ID),
				zap.Uint("template_id", *rule.TemplateID),
				zap.Error(err),
			)
			return
		}
		req.Type = models.TypeTemplate
		req.Content = "Template: " + template.Name
		req.TemplateName = template.Name
		req.LanguageCode = template.Language
	}

	if _, err := e.dispatcher.SendOutbound(ctx, req); err != nil {
		e.logger.Warn("auto-reply send failed",
			zap.Uint("rule_id", rule.ID),
			zap.Uint("contact_id", contact.ID),
			zap.Error(err),
		)
	}
}
