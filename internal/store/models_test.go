package store

import "testing"

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		status   TaskStatus
		terminal bool
	}{
		{StatusPending, false},
		{StatusProcessing, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := IsTerminal(tt.status); got != tt.terminal {
				t.Errorf("IsTerminal(%q) = %v, want %v", tt.status, got, tt.terminal)
			}
		})
	}
}

func TestValidType(t *testing.T) {
	tests := []struct {
		taskType TaskType
		valid    bool
	}{
		{TypeMarketing, true},
		{TypeDesign, true},
		{TypeDevelopment, true},
		{TaskType("finance"), false},
		{TaskType(""), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.taskType), func(t *testing.T) {
			if got := ValidType(tt.taskType); got != tt.valid {
				t.Errorf("ValidType(%q) = %v, want %v", tt.taskType, got, tt.valid)
			}
		})
	}
}

func TestValidPriority(t *testing.T) {
	tests := []struct {
		priority TaskPriority
		valid    bool
	}{
		{PriorityLow, true},
		{PriorityNormal, true},
		{PriorityHigh, true},
		{PriorityUrgent, true},
		{TaskPriority("asap"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.priority), func(t *testing.T) {
			if got := ValidPriority(tt.priority); got != tt.valid {
				t.Errorf("ValidPriority(%q) = %v, want %v", tt.priority, got, tt.valid)
			}
		})
	}
}
