package game

import "testing"

func TestMatch(t *testing.T) {
	t.Run("Rotation", func(t *testing.T) {
		match := NewMatch([]string{"Alice", "Bob", "Cara"}, 0)

		if match.CurrentPlayer().Name != "Alice" {
			t.Errorf("expected Alice first, got %s", match.CurrentPlayer().Name)
		}
		match.Advance()
		if match.CurrentPlayer().Name != "Bob" {
			t.Errorf("expected Bob after one advance, got %s", match.CurrentPlayer().Name)
		}
		match.Advance()
		match.Advance()
		if match.CurrentPlayer().Name != "Alice" {
			t.Errorf("expected rotation to wrap back to Alice, got %s", match.CurrentPlayer().Name)
		}
	})

	t.Run("Award And Win Once", func(t *testing.T) {
		match := NewMatch([]string{"Alice", "Bob"}, 0)
		players := match.Players()
		alice, bob := players[0], players[1]

		if !match.AwardPoints("20") {
			t.Fatal("expected award of 20 to apply")
		}
		if match.WinnerID() != alice.ID {
			t.Errorf("expected %s (Alice) as winner, got %s", alice.ID, match.WinnerID())
		}

		match.Advance()
		if !match.AwardPoints("25") {
			t.Fatal("expected award of 25 to apply")
		}
		if match.WinnerID() != alice.ID {
			t.Error("winner must not change after a later player crosses the threshold")
		}
		if match.Players()[1].Score != 25 {
			t.Errorf("expected Bob's score to still accumulate, got %d", match.Players()[1].Score)
		}
		_ = bob
	})

	t.Run("Accumulates To Threshold", func(t *testing.T) {
		match := NewMatch([]string{"Alice"}, 0)

		match.AwardPoints("10")
		if match.WinnerID() != "" {
			t.Error("no winner below threshold")
		}
		match.AwardPoints("9")
		if match.WinnerID() != "" {
			t.Error("no winner at 19 points")
		}
		match.AwardPoints("1")
		if match.WinnerID() == "" {
			t.Error("expected winner at exactly 20 points")
		}
	})

	t.Run("Invalid Input Is No-Op", func(t *testing.T) {
		match := NewMatch([]string{"Alice", "Bob"}, 0)

		for _, input := range []string{"", "   ", "abc", "0", "-5", "NaN"} {
			if match.AwardPoints(input) {
				t.Errorf("expected input %q to be a no-op", input)
			}
		}
		for _, p := range match.Players() {
			if p.Score != 0 {
				t.Errorf("expected all scores unchanged, %s has %d", p.Name, p.Score)
			}
		}
	})

	t.Run("Fractional Input Floors", func(t *testing.T) {
		match := NewMatch([]string{"Alice"}, 0)
		if !match.AwardPoints("3.7") {
			t.Fatal("expected fractional award to apply")
		}
		if score := match.Players()[0].Score; score != 3 {
			t.Errorf("expected floor to 3 points, got %d", score)
		}
	})

	t.Run("ClearWinner Reopens Match", func(t *testing.T) {
		match := NewMatch([]string{"Alice", "Bob"}, 5)
		match.AwardPoints("5")
		if match.WinnerID() == "" {
			t.Fatal("expected a winner")
		}

		match.ClearWinner()
		if match.WinnerID() != "" {
			t.Error("expected winner cleared")
		}

		match.Advance()
		match.AwardPoints("6")
		winner, ok := match.Winner()
		if !ok || winner.Name != "Bob" {
			t.Errorf("expected Bob declared after clear, got %+v", winner)
		}
	})

	t.Run("Custom Threshold", func(t *testing.T) {
		match := NewMatch([]string{"Alice"}, 30)
		match.AwardPoints("20")
		if match.WinnerID() != "" {
			t.Error("20 points must not win a 30-point match")
		}
		if match.WinPoints() != 30 {
			t.Errorf("expected threshold 30, got %d", match.WinPoints())
		}
	})
}
