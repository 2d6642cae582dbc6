// Package harness runs query scenarios against a seeded inventory and
// cross-checks the compiled SQL against the in-memory matcher.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: inventory
//	description: "What this scenario covers"
//	schema: schema.yaml
//	servers:
//	  - id: 1
//	    attributes: {hostname: web01, servertype: web, tags: [prod]}
//	queries:
//	  - name: web_servers
//	    filters:
//	      servertype: ExactMatch("web")
//	    restrict: [hostname]
//	    expect: [1]
//
// Filters are written as constructor calls, the form filter.Code prints.
// Unknown fields are rejected.
//
// # Checks
//
// Every query is run through the SQL engine and the matcher:
//
//   - sql_matcher_agreement: both select the same servers
//   - expected_ids: the servers equal expect, when given
//   - restricted_attributes: records carry only restricted attributes
//
// Each scenario gets its own in-memory SQLite database, so results are
// reproducible and can be compared against golden snapshots.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/inventory.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, err := range result.Errors {
//	    log.Println(err)
//	}
package harness
