package order

import (
	"testing"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantErr     bool
		wantOrderID string
		wantStatus  string
		wantSite    string
	}{
		{
			name:        "numeric id",
			raw:         `{"id":12345,"status":"processing"}`,
			wantOrderID: "12345",
			wantStatus:  "processing",
		},
		{
			name:        "string id",
			raw:         `{"id":"12345","status":"completed"}`,
			wantOrderID: "12345",
			wantStatus:  "completed",
		},
		{
			name:        "order_id fallback",
			raw:         `{"order_id":777,"status":"processing","site":"earlybird"}`,
			wantOrderID: "777",
			wantStatus:  "processing",
			wantSite:    "earlybird",
		},
		{
			name:        "id preferred over order_id",
			raw:         `{"id":1,"order_id":2,"status":"processing"}`,
			wantOrderID: "1",
			wantStatus:  "processing",
		},
		{
			name: "missing id and status",
			raw:  `{"foo":"bar"}`,
		},
		{
			name:    "not JSON",
			raw:     `not json at all`,
			wantErr: true,
		},
		{
			name:    "JSON null",
			raw:     `null`,
			wantErr: true,
		},
		{
			name:    "JSON array",
			raw:     `[1,2,3]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseEvent() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if ev.OrderID != tt.wantOrderID {
				t.Errorf("OrderID = %q, want %q", ev.OrderID, tt.wantOrderID)
			}
			if ev.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", ev.Status, tt.wantStatus)
			}
			if ev.Site != tt.wantSite {
				t.Errorf("Site = %q, want %q", ev.Site, tt.wantSite)
			}
			if ev.Payload == nil {
				t.Error("Payload should carry the decoded body")
			}
		})
	}
}

func TestShouldProcess(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"processing", true},
		{"Processing", true},
		{"PROCESSING", true},
		{"  processing  ", true},
		{"completed", false},
		{"pending", false},
		{"cancelled", false},
		{"", false},
		{"processing-extra", false},
	}

	for _, tt := range tests {
		t.Run("status "+tt.status, func(t *testing.T) {
			got := ShouldProcess(Event{Status: tt.status})
			if got != tt.want {
				t.Errorf("ShouldProcess(%q) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}
