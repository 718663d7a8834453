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

package schema

// closerFor maps an opening structural delimiter to its closer.
var closerFor = map[byte]byte{'{': '}', '[': ']'}

// Extract returns the first balanced JSON object or array embedded in raw.
// Delimiters inside string literals are ignored once a candidate has been
// opened, so braces in quoted values do not end the scan early.
func Extract(raw string) (string, bool) {
	for start := 0; start < len(raw); start++ {
		if _, ok := closerFor[raw[start]]; !ok {
			continue
		}
		if end, ok := matchClose(raw, start); ok {
			return raw[start : end+1], true
		}
	}
	return "", false
}

// candidates yields every balanced segment in raw in order of its opening
// delimiter. Nested segments are yielded after their parent.
func candidates(raw string) []string {
	var out []string
	for start := 0; start < len(raw); start++ {
		if _, ok := closerFor[raw[start]]; !ok {
			continue
		}
		if end, ok := matchClose(raw, start); ok {
			out = append(out, raw[start:end+1])
		}
	}
	return out
}

// matchClose finds the index of the delimiter closing raw[start].
// Mismatched closers abort the candidate.
func matchClose(raw string, start int) (int, bool) {
	stack := []byte{closerFor[raw[start]]}
	inString := false
	escaped := false
	for i := start + 1; i < len(raw); i++ {
		ch := raw[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch ch {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, closerFor[ch])
		case '}', ']':
			if stack[len(stack)-1] != ch {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
