package target

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const helperEnv = "TARGET_TEST_HELPER"

// TestMain doubles as the target binary: with helperEnv set the test
// executable behaves like a server under test instead of running tests.
func TestMain(m *testing.M) {
	switch os.Getenv(helperEnv) {
	case "":
		os.Exit(m.Run())
	case "announce":
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			os.Exit(2)
		}
		go func() {
			_ = http.Serve(ln, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, "Ok")
			}))
		}()
		if _, err := Announce("http://" + ln.Addr().String() + "/"); err != nil {
			os.Exit(2)
		}
		select {}
	case "silent":
		time.Sleep(time.Minute)
	case "garbage":
		_, _ = Announce("not a url")
		time.Sleep(time.Minute)
	case "exit":
		os.Exit(3)
	}
	os.Exit(0)
}

func helperSpawner(mode string, timeout time.Duration) *Spawner {
	return &Spawner{
		Command: os.Args[0],
		Args:    []string{"-test.run=^$"},
		Env:     append(os.Environ(), helperEnv+"="+mode),
		Timeout: timeout,
	}
}

func TestLaunch_AnnouncesURL(t *testing.T) {
	p, err := helperSpawner("announce", 10*time.Second).Launch(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Kill() })

	require.Equal(t, "http", p.URL().Scheme)
	require.Positive(t, p.Pid())

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(p.URL().String())
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, "Ok", string(body))

	require.NoError(t, p.Kill())
	require.NoError(t, p.Kill(), "kill is idempotent")

	client.CloseIdleConnections()
	_, err = client.Get(p.URL().String())
	require.Error(t, err, "killed target no longer serves")
}

func TestLaunch_Timeout(t *testing.T) {
	start := time.Now()
	_, err := helperSpawner("silent", 300*time.Millisecond).Launch(context.Background())
	require.ErrorIs(t, err, ErrAnnounceTimeout)
	require.Less(t, time.Since(start), 30*time.Second)
}

func TestLaunch_ExitWithoutAnnouncement(t *testing.T) {
	_, err := helperSpawner("exit", 10*time.Second).Launch(context.Background())
	require.ErrorIs(t, err, ErrNoAnnouncement)
}

func TestLaunch_InvalidURL(t *testing.T) {
	_, err := helperSpawner("garbage", 10*time.Second).Launch(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid announced URL")
}

func TestLaunch_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := helperSpawner("silent", time.Minute).Launch(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLaunch_MissingBinary(t *testing.T) {
	s := &Spawner{Command: "/nonexistent/target-binary", Timeout: time.Second}
	_, err := s.Launch(context.Background())
	require.Error(t, err)
}

func TestAnnounce_OutsideHarness(t *testing.T) {
	t.Setenv(EnvAnnounceFD, "")
	ok, err := Announce("http://127.0.0.1:1/")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAnnounce_BadDescriptor(t *testing.T) {
	t.Setenv(EnvAnnounceFD, "three")
	_, err := Announce("http://127.0.0.1:1/")
	require.Error(t, err)
}
