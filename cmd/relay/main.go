// Relay runs lead automation: prioritized rules that assign, score and
// route leads, and multi-step workflows with durable delays.
//
// Usage:
//
//	# Start the engine: sync definitions, resume delayed workflows, serve health checks
//	relay run --config relay.yaml
//
//	# Import leads and fire lead.created for each
//	relay leads import leads.yaml
//
//	# Dry-run a rule against a stored lead
//	relay rules test hot-leads --lead lead-42
//
//	# Success rates over the last day
//	relay executions stats --kind workflow --since 24h
package main

func main() {
	Execute()
}
