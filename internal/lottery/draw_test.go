// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Lottery License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package lottery

import "testing"

func TestHasWon(t *testing.T) {
	tests := []struct {
		name   string
		number int
		want   bool
	}{
		{"winning number", 7574, true},
		{"close miss", 7573, false},
		{"ordinary number", 1234, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bet := testBet(1, tt.number)
			if got := HasWon(bet); got != tt.want {
				t.Errorf("HasWon(number=%d) = %v, want %v", tt.number, got, tt.want)
			}
		})
	}
}

func TestHasWon_IgnoresAgency(t *testing.T) {
	// A mesma aposta ganha independente de qual agência a submeteu
	for agency := 1; agency <= 5; agency++ {
		if !HasWon(testBet(agency, 7574)) {
			t.Errorf("agency %d: expected winning bet", agency)
		}
	}
}
