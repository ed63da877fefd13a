package action

import (
	"errors"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Action
	}{
		{"launch bare", `do(action="Launch", app=Settings)`,
			Action{Kind: KindLaunch, Name: "Launch", Meta: MetaDo, App: "Settings"}},
		{"launch quoted", `do(action="Launch", app="微信")`,
			Action{Kind: KindLaunch, Name: "Launch", Meta: MetaDo, App: "微信"}},
		{"tap", `do(action="Tap", element=[500, 300])`,
			Action{Kind: KindTap, Name: "Tap", Meta: MetaDo, Element: Coordinates{500, 300}}},
		{"tap float coords", `do(action="Tap", element=[499.6, 0])`,
			Action{Kind: KindTap, Name: "Tap", Meta: MetaDo, Element: Coordinates{500, 0}}},
		{"long press", `do(action="Long Press", element=[1,2], duration_ms=1500)`,
			Action{Kind: KindLongPress, Name: "Long Press", Meta: MetaDo, Element: Coordinates{1, 2}, DurationMs: 1500}},
		{"double tap", `do(action='Double Tap', element=[10, 20])`,
			Action{Kind: KindDoubleTap, Name: "Double Tap", Meta: MetaDo, Element: Coordinates{10, 20}}},
		{"type with comma and escape", `do(action="Type", text="hello, \"world\"")`,
			Action{Kind: KindType, Name: "Type", Meta: MetaDo, Text: `hello, "world"`}},
		{"swipe", `do(action="Swipe", start=[500, 800], end=[500, 200])`,
			Action{Kind: KindSwipe, Name: "Swipe", Meta: MetaDo, Start: Coordinates{500, 800}, End: Coordinates{500, 200}}},
		{"back", `do(action="Back")`, Action{Kind: KindBack, Name: "Back", Meta: MetaDo}},
		{"home", `do(action="Home")`, Action{Kind: KindHome, Name: "Home", Meta: MetaDo}},
		{"wait seconds string", `do(action="Wait", duration="2 seconds")`,
			Action{Kind: KindWait, Name: "Wait", Meta: MetaDo, Wait: 2 * time.Second}},
		{"wait number", `do(action="Wait", duration=1.5)`,
			Action{Kind: KindWait, Name: "Wait", Meta: MetaDo, Wait: 1500 * time.Millisecond}},
		{"take over", `do(action="Take_over", message="Please log in")`,
			Action{Kind: KindTakeOver, Name: "Take_over", Meta: MetaDo, Message: "Please log in"}},
		{"unknown name is permissive", `do(action="Interact")`,
			Action{Kind: KindOperation, Name: "Interact", Meta: MetaDo}},
		{"finish bare", `finish(message=done)`,
			Action{Kind: KindFinish, Name: "finish", Meta: MetaFinish, Message: "done"}},
		{"finish quoted", `finish(message="All set, see you")`,
			Action{Kind: KindFinish, Name: "finish", Meta: MetaFinish, Message: "All set, see you"}},
		{"legacy answer", `<answer>do(action="Back")</answer>`,
			Action{Kind: KindBack, Name: "Back", Meta: MetaDo}},
		{"trailing text", "do(action=\"Home\")\n",
			Action{Kind: KindHome, Name: "Home", Meta: MetaDo}},
		{"text after the call", `do(action="Back") then finish(message=x)`,
			Action{Kind: KindBack, Name: "Back", Meta: MetaDo}},
		{"paren inside quotes", `do(action="Type", text="a) b") ok`,
			Action{Kind: KindType, Name: "Type", Meta: MetaDo, Text: "a) b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.in, err)
			}
			got.Raw = ""
			if got != tt.want {
				t.Errorf("Parse(%q) =\n%+v\nwant\n%+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []string{
		"",
		"I think we are done",
		`do(action="Tap")`,
		`do(action="Tap", element=[500])`,
		`do(action="Tap", element=[1200, 5])`,
		`do(action="Tap", element=[-1, 5])`,
		`do(action="Launch")`,
		`do(action="Type", text="unterminated)`,
		`do(app="Settings")`,
		`do(action="Swipe", start=[1, 2])`,
		`do(action="Wait", duration="soon")`,
		`do(action="Wait")`,
		`do action="Back"`,
		`finish()`,
	}

	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			if _, err := Parse(in); !errors.Is(err, ErrMalformed) {
				t.Errorf("Parse(%q) error = %v, want ErrMalformed", in, err)
			}
		})
	}
}

func TestParseKeepsRaw(t *testing.T) {
	in := `  do(action="Back")  `
	a, err := Parse(in)
	if err != nil {
		t.Fatal(err)
	}
	if a.Raw != `do(action="Back")` {
		t.Errorf("Raw = %q", a.Raw)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		a    Action
		want string
	}{
		{Action{Kind: KindTap, Name: "Tap", Meta: MetaDo, Element: Coordinates{500, 300}}, "[[ACTION:Tap]]Tap (500, 300)"},
		{Action{Kind: KindLongPress, Name: "Long Press", Meta: MetaDo, Element: Coordinates{1, 2}}, "[[ACTION:Long_Press]]Long Press (1, 2)"},
		{Finish("done"), "[[ACTION:FINISH]]done"},
		{Action{Kind: KindOperation, Meta: MetaDo}, "[[ACTION:OPERATION]]"},
	}
	for _, tt := range tests {
		if got := Describe(tt.a); got != tt.want {
			t.Errorf("Describe() = %q, want %q", got, tt.want)
		}
	}
}

func TestPixels(t *testing.T) {
	x, y := Coordinates{500, 300}.Pixels(1080, 2400)
	if x != 540 || y != 720 {
		t.Errorf("Pixels() = %d, %d", x, y)
	}
	x, y = Coordinates{1000, 1000}.Pixels(1080, 2400)
	if x != 1080 || y != 2400 {
		t.Errorf("Pixels() at max = %d, %d", x, y)
	}
}
