package region

import "testing"

func TestDetect(t *testing.T) {
	tests := []struct {
		tz   string
		want Code
	}{
		{"America/New_York", US},
		{"America/Toronto", US},
		{"Europe/London", EU},
		{"Europe/Berlin", EU},
		{"Australia/Sydney", AU},
		{"Asia/Tokyo", JP},
		{"Asia/Shanghai", CN},
		{"Asia/Chongqing", CN},
		{"Asia/Urumqi", CN},
		{"Asia/Taipei", TW},
		{"Asia/Seoul", KR},
		{"Asia/Kolkata", Other},
		{"Unknown/Zone", Other},
		{"UTC", Other},
		{"", Other},
	}

	for _, tt := range tests {
		t.Run(tt.tz, func(t *testing.T) {
			if got := Detect(tt.tz); got != tt.want {
				t.Errorf("Detect(%q) = %v, want %v", tt.tz, got, tt.want)
			}
		})
	}
}

func TestLocalHonorsTZ(t *testing.T) {
	t.Setenv("TZ", "Asia/Taipei")
	if got := Local(); got != TW {
		t.Errorf("Local() = %v, want %v", got, TW)
	}
}

func TestParse(t *testing.T) {
	if c, ok := Parse("tw"); !ok || c != TW {
		t.Errorf("Parse(tw) = %v, %v", c, ok)
	}
	if c, ok := Parse(" global "); !ok || c != Global {
		t.Errorf("Parse(global) = %v, %v", c, ok)
	}
	if _, ok := Parse("mars"); ok {
		t.Error("Parse(mars) should fail")
	}
}
