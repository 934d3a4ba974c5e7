package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alpineops/vouchergw/internal/config"
	"github.com/alpineops/vouchergw/internal/order"
)

// fakeEarlyBird stands in for the EarlyBird partner portal.
type fakeEarlyBird struct {
	mux        *http.ServeMux
	loginCalls atomic.Int64
	// accountLoggedIn makes the account probe succeed without a login.
	accountLoggedIn bool
}

func newFakeEarlyBird() *fakeEarlyBird {
	f := &fakeEarlyBird{mux: http.NewServeMux()}

	f.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	f.mux.HandleFunc("/mon-compte/", func(w http.ResponseWriter, r *http.Request) {
		if f.accountLoggedIn {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, r, "/wp-login.php?redirect_to=/mon-compte/", http.StatusFound)
	})
	f.mux.HandleFunc("/wp-login.php", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusOK)
			return
		}
		f.loginCalls.Add(1)
		if r.FormValue("log") != "booker" || r.FormValue("pwd") != "secret" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		f.accountLoggedIn = true
		w.WriteHeader(http.StatusOK)
	})
	f.mux.HandleFunc("/offre-earlybooking/commande", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":           true,
			"voucher_reference": "EB-777",
		})
	})
	return f
}

func newEarlyBirdTaskForTest(t *testing.T, baseURL string) Task {
	t.Helper()
	task, err := NewEarlyBirdTask(config.SiteConf{
		BaseURL:  baseURL,
		Username: "booker",
		Password: "secret",
	})
	if err != nil {
		t.Fatalf("NewEarlyBirdTask() error = %v", err)
	}
	return task
}

func TestEarlyBirdTask_FullLifecycle(t *testing.T) {
	fake := newFakeEarlyBird()
	srv := httptest.NewServer(fake.mux)
	defer srv.Close()

	task := newEarlyBirdTaskForTest(t, srv.URL)
	ctx := context.Background()

	if err := task.AcquireSession(ctx); err != nil {
		t.Fatalf("AcquireSession() error = %v", err)
	}
	if err := task.Authenticate(ctx); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if got := fake.loginCalls.Load(); got != 1 {
		t.Errorf("login calls = %d, want 1", got)
	}

	outcome, err := task.Execute(ctx, order.Event{
		OrderID: "777",
		Payload: map[string]any{"id": float64(777), "status": "processing"},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !outcome.Success || outcome.VoucherRef != "EB-777" {
		t.Errorf("outcome = %+v, want success with EB-777", outcome)
	}
	task.ReleaseSession()
}

func TestEarlyBirdTask_AuthenticateShortCircuitsExistingLogin(t *testing.T) {
	fake := newFakeEarlyBird()
	fake.accountLoggedIn = true
	srv := httptest.NewServer(fake.mux)
	defer srv.Close()

	task := newEarlyBirdTaskForTest(t, srv.URL)
	ctx := context.Background()

	if err := task.AcquireSession(ctx); err != nil {
		t.Fatalf("AcquireSession() error = %v", err)
	}
	if err := task.Authenticate(ctx); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if got := fake.loginCalls.Load(); got != 0 {
		t.Errorf("login calls = %d, want 0 (probe should detect the session)", got)
	}
}

func TestEarlyBirdTask_AuthenticateRejected(t *testing.T) {
	fake := newFakeEarlyBird()
	srv := httptest.NewServer(fake.mux)
	defer srv.Close()

	task, err := NewEarlyBirdTask(config.SiteConf{
		BaseURL:  srv.URL,
		Username: "booker",
		Password: "wrong",
	})
	if err != nil {
		t.Fatalf("NewEarlyBirdTask() error = %v", err)
	}

	ctx := context.Background()
	if err := task.AcquireSession(ctx); err != nil {
		t.Fatalf("AcquireSession() error = %v", err)
	}
	if err := task.Authenticate(ctx); err == nil {
		t.Fatal("Authenticate() should fail on rejected credentials")
	}
}
