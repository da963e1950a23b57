// dephealth_test.go — unit-тесты сведения состояния зависимостей к readiness.
package service

import "testing"

// TestReadinessFromHealth проверяет статус readiness по карте здоровья зависимостей.
func TestReadinessFromHealth(t *testing.T) {
	tests := []struct {
		name        string
		health      map[string]bool
		wantStatus  string
		wantMessage string
	}{
		{
			name:       "проверка не выполнялась",
			health:     nil,
			wantStatus: "degraded",
		},
		{
			name:       "каталог доступен",
			health:     map[string]bool{"catalog-service": true},
			wantStatus: "ok",
		},
		{
			name:        "каталог недоступен",
			health:      map[string]bool{"catalog-service": false},
			wantStatus:  "fail",
			wantMessage: "зависимость недоступна: catalog-service",
		},
		{
			name:        "несколько недоступных — сортировка",
			health:      map[string]bool{"b": false, "a": false, "c": true},
			wantStatus:  "fail",
			wantMessage: "зависимость недоступна: a, b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := readinessFromHealth(tt.health)
			if status != tt.wantStatus {
				t.Errorf("status = %q, ожидался %q", status, tt.wantStatus)
			}
			if tt.wantMessage != "" && msg != tt.wantMessage {
				t.Errorf("message = %q, ожидалось %q", msg, tt.wantMessage)
			}
		})
	}
}
