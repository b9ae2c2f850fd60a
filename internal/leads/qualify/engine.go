// Package qualify turns a lead conversation into a reply and a guarded
// qualification decision using a language model.
package qualify

import (
	"context"
	"strings"

	"leadhandler_backend/internal/leads/domain"
	"leadhandler_backend/internal/leads/repository"
	"leadhandler_backend/platform/ai"
	"leadhandler_backend/platform/logger"
	"leadhandler_backend/platform/metrics"
	"leadhandler_backend/platform/sanitize"
)

const (
	// MaxReplyLength bounds every SMS reply produced here.
	MaxReplyLength = 320

	// FallbackReply is sent when the model cannot be used.
	FallbackReply = "Thanks for reaching out! To connect you with the right agent, are you looking to buy or sell, and in which area?"

	schemaName = "lead_qualification"
)

// Result is the outcome of one qualification pass.
type Result struct {
	Reply      string
	Extraction domain.Extraction
	// Qualified is the guard decision; only it may move a lead to qualified.
	Qualified bool
	// ModelQualified is what the model claimed. Logged, never trusted.
	ModelQualified bool
	ModelSummary   string
	// Summary is the canonical summary, set when Qualified.
	Summary  string
	Missing  []string
	Fallback bool
}

type Engine struct {
	gen    ai.TextGenerator
	log    *logger.Logger
	schema any
}

func New(gen ai.TextGenerator, log *logger.Logger) *Engine {
	if gen == nil {
		gen = ai.Unavailable{}
	}
	return &Engine{
		gen:    gen,
		log:    log,
		schema: ai.GenerateSchema[modelOutput](),
	}
}

// Qualify never fails: provider and parse errors produce the fallback result.
func (e *Engine) Qualify(ctx context.Context, lead repository.Lead, history []repository.Message) Result {
	log := e.log.WithContext(ctx)

	raw, err := e.gen.Generate(ctx, ai.Prompt{
		System:     systemPrompt,
		User:       buildUserPrompt(lead, history),
		JSON:       true,
		SchemaName: schemaName,
		Schema:     e.schema,
	})
	if err != nil {
		log.Warn("qualification model call failed, using fallback", "provider", e.gen.Name(), "error", err)
		return e.fallback()
	}

	out, err := parseModelOutput(raw)
	if err != nil {
		log.Warn("qualification output unparseable, using fallback", "provider", e.gen.Name(), "error", err)
		return e.fallback()
	}

	reply := truncateReply(sanitize.SMS(out.Reply), MaxReplyLength)
	if reply == "" {
		log.Warn("qualification reply empty after sanitizing, using fallback", "provider", e.gen.Name())
		return e.fallback()
	}

	result := Result{
		Reply:          reply,
		Extraction:     out.Extracted.toDomain(),
		ModelQualified: bool(out.Qualified),
		ModelSummary:   strings.TrimSpace(out.Summary),
	}
	result.Qualified = domain.IsQualified(result.Extraction)
	result.Missing = domain.MissingFields(result.Extraction)
	if result.Qualified {
		result.Summary = domain.QualificationSummary(result.Extraction)
	}

	if result.ModelQualified != result.Qualified {
		log.Info("model qualification overridden by guard",
			"modelQualified", result.ModelQualified,
			"qualified", result.Qualified,
			"missing", strings.Join(result.Missing, ","),
		)
	}
	metrics.Qualifications.WithLabelValues(guardLabel(result.Qualified)).Inc()
	return result
}

func (e *Engine) fallback() Result {
	metrics.Qualifications.WithLabelValues("fallback").Inc()
	return Result{
		Reply:    FallbackReply,
		Missing:  domain.MissingFields(domain.Extraction{}),
		Fallback: true,
	}
}

func guardLabel(qualified bool) string {
	if qualified {
		return "qualified"
	}
	return "incomplete"
}

// truncateReply cuts s to maxLen bytes on a word boundary when possible.
func truncateReply(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := sanitize.Truncate(s, maxLen)
	if idx := strings.LastIndexAny(cut, " \n"); idx > maxLen/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}
