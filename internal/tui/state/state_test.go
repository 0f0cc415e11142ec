package state

import "testing"

func TestClampCursor(t *testing.T) {
	if got := ClampCursor(-1, 3); got != 0 {
		t.Fatalf("expected clamp to 0, got %d", got)
	}
	if got := ClampCursor(3, 3); got != 2 {
		t.Fatalf("expected clamp to 2, got %d", got)
	}
	if got := ClampCursor(1, 3); got != 1 {
		t.Fatalf("expected keep 1, got %d", got)
	}
}

func TestPageStep(t *testing.T) {
	if got := PageStep(0, false); got != 10 {
		t.Fatalf("expected default step 10, got %d", got)
	}
	if got := PageStep(12, false); got != 6 {
		t.Fatalf("expected step 6, got %d", got)
	}
	if got := PageStep(12, true); got != 4 {
		t.Fatalf("expected step 4 with status, got %d", got)
	}
}

func TestCenteredWindow(t *testing.T) {
	start, end := CenteredWindow(5, 3, 3)
	if start != 2 || end != 5 {
		t.Fatalf("unexpected window: start=%d end=%d", start, end)
	}
	start, end = CenteredWindow(2, 1, 10)
	if start != 0 || end != 2 {
		t.Fatalf("expected whole list, got start=%d end=%d", start, end)
	}
}

func TestIsNarrow(t *testing.T) {
	cases := map[int]bool{0: false, 40: true, 79: true, 80: false, 120: false}
	for width, want := range cases {
		if got := IsNarrow(width); got != want {
			t.Fatalf("IsNarrow(%d) = %v, want %v", width, got, want)
		}
	}
}

func TestViewport_Reveal(t *testing.T) {
	v := Viewport{Top: 0, Height: 3}

	v = v.Reveal(4, 10)
	if v.Top != 2 {
		t.Fatalf("expected top 2 after revealing 4, got %d", v.Top)
	}
	v = v.Reveal(3, 10)
	if v.Top != 2 {
		t.Fatalf("expected no scroll for a visible row, got %d", v.Top)
	}
	v = v.Reveal(0, 10)
	if v.Top != 0 {
		t.Fatalf("expected top 0 after revealing 0, got %d", v.Top)
	}
}

func TestViewport_AlignTopAndWindow(t *testing.T) {
	v := Viewport{Height: 3}.AlignTop(5, 10)
	if v.Top != 5 {
		t.Fatalf("expected top 5, got %d", v.Top)
	}
	if start, end := v.Window(10); start != 5 || end != 8 {
		t.Fatalf("unexpected window %d-%d", start, end)
	}

	v = Viewport{Height: 3}.AlignTop(9, 10)
	if v.Top != 7 {
		t.Fatalf("expected top clamped to 7, got %d", v.Top)
	}

	shrunk := Viewport{Top: 8, Height: 3}
	if start, end := shrunk.Window(5); start != 2 || end != 5 {
		t.Fatalf("expected window clamped to the list end, got %d-%d", start, end)
	}
}
