// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


// Command explorer searches for scorecard changes that move an experiment
// toward a goal.
//
// Usage:
//
//	explorer serve --config explorer.yaml
//	explorer run --experiment exp-checkout --metric success_rate --threshold 0.4
//	explorer show <exploration-id>
//	explorer list
//	explorer config
//
// Example requests against a running server:
//
//	curl -X POST http://localhost:12230/v1/explorations \
//	  -H "Content-Type: application/json" \
//	  -d '{"experiment_id": "exp-checkout", "goal": {"metric": "success_rate", "comparator": "gte", "threshold": 0.4}}'
//
//	curl -X POST http://localhost:12230/v1/explorations/<id>/run
//	curl http://localhost:12230/v1/explorations/<id>/tree?format=text
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
