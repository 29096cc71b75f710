// Package definitions keeps rules and workflows declared in a YAML file in
// sync with storage.
//
// A definitions file holds two lists:
//
//	rules:
//	  - id: hot-leads
//	    name: Hot leads to sales
//	    type: assignment
//	    conditions: [{field: score, operator: greater_than, value: 80}]
//	    actions: [{type: assignment, target: team, value: sales}]
//	workflows:
//	  - id: onboarding
//	    name: Onboarding
//	    trigger: lead.created
//	    steps: [{type: delay, order: 1, config: {duration: 1h}}]
//
// Every definition needs an id; a Syncer creates missing ids and replaces
// existing ones through the rule and workflow engines, so the same
// validation applies as for API writes. A Watcher re-runs the sync after
// the file changes.
package definitions
