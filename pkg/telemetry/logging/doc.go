// Package logging builds the process logger.
//
// New wraps a JSON or text slog handler in a ContextHandler, which copies
// lead, rule, workflow, execution, trigger event and actor identifiers
// from the context onto every record and optionally masks contact details:
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
//	ctx = logging.WithLeadID(ctx, lead.ID)
//	logger.InfoContext(ctx, "rules applied", "matched", 2) // includes lead_id
package logging
