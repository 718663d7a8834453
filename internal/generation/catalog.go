// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package generation

import (
	"sort"
	"strings"
)

// scenarios maps each supported interaction scenario to the phrase used in
// script prompts.
var scenarios = map[string]string{
	"traffic_stop":             "during a traffic stop",
	"street_questioning":       "when being questioned on the street",
	"home_visit":               "when police visit your home",
	"workplace_visit":          "when police visit your workplace",
	"search_request":           "when police request to search you or your property",
	"arrest_situation":         "during an arrest situation",
	"checkpoint":               "at a police checkpoint",
	"protest_or_demonstration": "during a protest or demonstration",
	"general_interaction":      "during a general police interaction",
}

var jurisdictions = []string{
	"federal",
	"alabama", "alaska", "arizona", "arkansas", "california", "colorado",
	"connecticut", "delaware", "florida", "georgia", "hawaii", "idaho",
	"illinois", "indiana", "iowa", "kansas", "kentucky", "louisiana", "maine",
	"maryland", "massachusetts", "michigan", "minnesota", "mississippi",
	"missouri", "montana", "nebraska", "nevada", "new_hampshire", "new_jersey",
	"new_mexico", "new_york", "north_carolina", "north_dakota", "ohio",
	"oklahoma", "oregon", "pennsylvania", "rhode_island", "south_carolina",
	"south_dakota", "tennessee", "texas", "utah", "vermont", "virginia",
	"washington", "west_virginia", "wisconsin", "wyoming",
	"district_of_columbia",
}

var jurisdictionSet = func() map[string]bool {
	m := make(map[string]bool, len(jurisdictions))
	for _, j := range jurisdictions {
		m[j] = true
	}
	return m
}()

// Jurisdictions returns every supported jurisdiction key.
func Jurisdictions() []string {
	return append([]string(nil), jurisdictions...)
}

// Scenarios returns every supported scenario key in sorted order.
func Scenarios() []string {
	out := make([]string, 0, len(scenarios))
	for s := range scenarios {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// displayName turns a key such as "new_york" into "New York".
func displayName(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "of" {
			continue
		}
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
