// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Lottery License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package lottery

import (
	"errors"
	"testing"
)

func TestBet_RecordRoundTrip(t *testing.T) {
	bets := []Bet{
		{Agency: 1, FirstName: "Ana", LastName: "Gomez", Document: "40000001", Birthdate: "2000-01-02", Number: 1234},
		{Agency: 3, FirstName: "X", LastName: "Y", Document: "40000003", Birthdate: "2000-01-03", Number: 7574},
		{Agency: 42, FirstName: "Maria Ines", LastName: "da Silva", Document: "00123456", Birthdate: "1987-12-31", Number: 1},
	}

	for _, want := range bets {
		record := want.Record()

		got, err := ParseBet(record)
		if err != nil {
			t.Fatalf("ParseBet(%q): %v", record, err)
		}
		if got != want {
			t.Errorf("round trip mismatch:\n  sent: %+v\n  got:  %+v", want, got)
		}
	}
}

func TestBet_BatchRecordRoundTrip(t *testing.T) {
	want := Bet{Agency: 5, FirstName: "Juan", LastName: "Perez", Document: "30000005", Birthdate: "1999-10-30", Number: 2872}

	got, err := ParseWireRecord(want.Agency, want.BatchRecord())
	if err != nil {
		t.Fatalf("ParseWireRecord: %v", err)
	}
	if got != want {
		t.Errorf("round trip mismatch:\n  sent: %+v\n  got:  %+v", want, got)
	}
}

func TestParseBet_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		record string
	}{
		{"too few fields", "1;Ana;Gomez;40000001;2000-01-02"},
		{"too many fields", "1;Ana;Gomez;40000001;2000-01-02;1234;extra"},
		{"empty first name", "1;;Gomez;40000001;2000-01-02;1234"},
		{"empty document", "1;Ana;Gomez;;2000-01-02;1234"},
		{"non-numeric agency", "one;Ana;Gomez;40000001;2000-01-02;1234"},
		{"zero agency", "0;Ana;Gomez;40000001;2000-01-02;1234"},
		{"document with letters", "1;Ana;Gomez;4000A001;2000-01-02;1234"},
		{"unparseable birthdate", "1;Ana;Gomez;40000001;02/01/2000;1234"},
		{"invalid calendar date", "1;Ana;Gomez;40000001;2000-02-30;1234"},
		{"non-numeric number", "1;Ana;Gomez;40000001;2000-01-02;abcd"},
		{"zero number", "1;Ana;Gomez;40000001;2000-01-02;0"},
		{"negative number", "1;Ana;Gomez;40000001;2000-01-02;-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBet(tt.record)
			if !errors.Is(err, ErrInvalidRecord) {
				t.Fatalf("expected ErrInvalidRecord, got: %v", err)
			}
		})
	}
}

func TestParseWireRecord_TagsSessionAgency(t *testing.T) {
	// O registro no lote não carrega agência; a da sessão é imposta
	bet, err := ParseWireRecord(4, "Ana;Gomez;40000001;2000-01-02;1234")
	if err != nil {
		t.Fatalf("ParseWireRecord: %v", err)
	}
	if bet.Agency != 4 {
		t.Errorf("expected agency 4, got %d", bet.Agency)
	}
}

func TestParseBatch(t *testing.T) {
	records := []string{
		"Ana;Gomez;40000001;2000-01-02;1234",
		"Juan;Perez;40000002;1999-10-30;7574",
		"Luz;Diaz;40000003;1985-05-15;42",
	}

	bets, err := ParseBatch(2, records)
	if err != nil {
		t.Fatalf("ParseBatch: %v", err)
	}
	if len(bets) != len(records) {
		t.Fatalf("expected %d bets, got %d", len(records), len(bets))
	}
	for i, bet := range bets {
		if bet.Agency != 2 {
			t.Errorf("bet %d: expected agency 2, got %d", i, bet.Agency)
		}
	}
	if bets[1].Number != 7574 {
		t.Errorf("expected number 7574, got %d", bets[1].Number)
	}
}

func TestParseBatch_OneBadRecordFailsAll(t *testing.T) {
	records := []string{
		"Ana;Gomez;40000001;2000-01-02;1234",
		"broken-record",
		"Luz;Diaz;40000003;1985-05-15;42",
	}

	bets, err := ParseBatch(2, records)
	if !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got: %v", err)
	}
	if bets != nil {
		t.Errorf("expected no bets from a malformed batch, got %d", len(bets))
	}
}

func TestParseCSV(t *testing.T) {
	bet, err := ParseCSV(7, "Santiago Lionel,Lorca,30904465,1999-03-17,2201")
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}

	want := Bet{Agency: 7, FirstName: "Santiago Lionel", LastName: "Lorca", Document: "30904465", Birthdate: "1999-03-17", Number: 2201}
	if bet != want {
		t.Errorf("expected %+v, got %+v", want, bet)
	}
}

func TestParseCSV_Malformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"too few fields", "Ana,Gomez,40000001,2000-01-02"},
		{"semicolon separated", "Ana;Gomez;40000001;2000-01-02;1234"},
		{"bad number", "Ana,Gomez,40000001,2000-01-02,NaN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(1, tt.line)
			if !errors.Is(err, ErrInvalidRecord) {
				t.Fatalf("expected ErrInvalidRecord, got: %v", err)
			}
		})
	}
}
