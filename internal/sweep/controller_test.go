package sweep_test

import (
	"context"
	"testing"
	"time"

	"vigil/internal/notifications"
	"vigil/internal/sweep"
)

func newController(fx *fixture) *sweep.Controller {
	return sweep.NewController(fx.engine, nil, nil)
}

func waitRun(t *testing.T, ctrl *sweep.Controller) sweep.RunSummary {
	t.Helper()
	summary, err := ctrl.Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	return summary
}

func TestControllerStartIsNoopWhileInactive(t *testing.T) {
	fx := newFixture(t, "A")
	ctrl := newController(fx)

	if h, started := ctrl.Start(); h != nil || started {
		t.Fatal("inactive controller must not start")
	}
	if status := ctrl.Status(); status.Active || status.Running {
		t.Fatalf("unexpected status %#v", status)
	}
}

func TestControllerActivateRunsSweepToCompletion(t *testing.T) {
	fx := newFixture(t, "A", "B")
	ctrl := newController(fx)

	if !ctrl.Activate() {
		t.Fatal("expected activate to launch a continuation")
	}
	summary := waitRun(t, ctrl)
	if summary.Last != sweep.OutcomeFinished || summary.Processed != 2 {
		t.Fatalf("unexpected summary %#v", summary)
	}
	if len(fx.notifier.byEvent(notifications.EventSweepCompleted)) != 1 {
		t.Fatal("expected sweep completion event")
	}
}

func TestControllerStartTwiceKeepsOneContinuation(t *testing.T) {
	fx := newFixture(t, "A")
	fx.fetcher.block = make(chan struct{})
	fx.fetcher.entered = make(chan string, 1)
	ctrl := newController(fx)

	ctrl.Activate()
	select {
	case <-fx.fetcher.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("continuation never reached the fetch")
	}

	first, startedFirst := ctrl.Start()
	second, startedSecond := ctrl.Start()
	if startedFirst || startedSecond {
		t.Fatal("Start must not launch while a continuation is running")
	}
	if first == nil || first != second {
		t.Fatal("expected both calls to return the running handle")
	}
	if !ctrl.Status().Running {
		t.Fatal("expected running status")
	}

	close(fx.fetcher.block)
	waitRun(t, ctrl)
	if n := fx.fetcher.callsFor("A"); n != 1 {
		t.Fatalf("expected exactly one fetch of A, got %d", n)
	}
}

func TestControllerPauseAndResumeOnNotification(t *testing.T) {
	fx := newFixture(t, "A", "B")
	fx.fetcher.preparing["A"] = 1
	ctrl := newController(fx)

	ctrl.Activate()
	summary := waitRun(t, ctrl)
	if summary.Last != sweep.OutcomePaused {
		t.Fatalf("expected paused run, got %#v", summary)
	}
	if status := ctrl.Status(); status.WaitingFor != "A" || status.Running {
		t.Fatalf("unexpected status %#v", status)
	}

	if ctrl.NotifyObjectAvailable("B") {
		t.Fatal("notification for another identifier must be ignored")
	}
	if got := ctrl.Status().WaitingFor; got != "A" {
		t.Fatalf("waiting slot changed to %q", got)
	}

	if !ctrl.NotifyObjectAvailable("A") {
		t.Fatal("expected matching notification to resume")
	}
	summary = waitRun(t, ctrl)
	if summary.Last != sweep.OutcomeFinished {
		t.Fatalf("expected resumed sweep to finish, got %#v", summary)
	}
	if n := fx.fetcher.callsFor("A"); n != 2 {
		t.Fatalf("expected A fetched twice, got %d", n)
	}

	completed := fx.notifier.byEvent(notifications.EventSweepCompleted)
	if len(completed) != 1 || completed[0].payload["total"] != 2 {
		t.Fatalf("expected completion with total=2, got %#v", completed)
	}
	ledgerSummary, err := fx.store.Summary(context.Background())
	if err != nil || ledgerSummary.Total != 0 {
		t.Fatalf("expected empty ledger, got %#v (%v)", ledgerSummary, err)
	}
	if ctrl.Status().WaitingFor != "" {
		t.Fatal("waiting slot should be empty after resume")
	}
}

func TestControllerIgnoresNotificationWhileInactive(t *testing.T) {
	fx := newFixture(t, "A")
	fx.fetcher.preparing["A"] = 1
	ctrl := newController(fx)

	ctrl.Activate()
	waitRun(t, ctrl)
	ctrl.Deactivate()

	if ctrl.NotifyObjectAvailable("A") {
		t.Fatal("inactive controller must ignore notifications")
	}
	if got := ctrl.Status().WaitingFor; got != "A" {
		t.Fatalf("expected slot untouched, got %q", got)
	}
}

func TestControllerStartClearsStaleWait(t *testing.T) {
	fx := newFixture(t, "A")
	fx.fetcher.preparing["A"] = 1
	ctrl := newController(fx)

	ctrl.Activate()
	waitRun(t, ctrl)
	if ctrl.Status().WaitingFor != "A" {
		t.Fatal("expected sweep parked on A")
	}

	if _, started := ctrl.Start(); !started {
		t.Fatal("expected Start to launch after a paused run")
	}
	summary := waitRun(t, ctrl)
	if summary.Last != sweep.OutcomeFinished {
		t.Fatalf("expected sweep to finish, got %#v", summary)
	}
	if ctrl.NotifyObjectAvailable("A") {
		t.Fatal("stale notification must not relaunch")
	}
}

func TestControllerIsWaitingForClearsOnMatch(t *testing.T) {
	fx := newFixture(t, "A")
	fx.fetcher.preparing["A"] = 1
	ctrl := newController(fx)

	ctrl.Activate()
	waitRun(t, ctrl)

	if ctrl.IsWaitingFor("B") {
		t.Fatal("expected no match for B")
	}
	if !ctrl.IsWaitingFor("A") {
		t.Fatal("expected match for A")
	}
	if ctrl.IsWaitingFor("A") {
		t.Fatal("match must clear the slot")
	}

	fx.fetcher.preparing["A"] = 1
	ctrl.Start()
	waitRun(t, ctrl)
	ctrl.ClearWait()
	if ctrl.Status().WaitingFor != "" {
		t.Fatal("ClearWait must empty the slot")
	}
}

func TestControllerDeactivateCancelsBetweenSteps(t *testing.T) {
	fx := newFixture(t, "A", "B", "C")
	fx.fetcher.block = make(chan struct{})
	fx.fetcher.entered = make(chan string, 1)
	ctrl := newController(fx)

	ctrl.Activate()
	select {
	case <-fx.fetcher.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("continuation never reached the fetch")
	}
	ctrl.Deactivate()
	close(fx.fetcher.block)

	summary := waitRun(t, ctrl)
	if !summary.Cancelled || summary.Processed != 1 {
		t.Fatalf("expected in-flight step to finish then stop, got %#v", summary)
	}
	if record := fx.record(t, "A"); record == nil || !record.Verified() {
		t.Fatalf("in-flight step should complete, got %#v", record)
	}
	if record := fx.record(t, "B"); record != nil {
		t.Fatalf("no step should start after cancellation, got %#v", record)
	}
	if _, started := ctrl.Start(); started {
		t.Fatal("deactivated controller must not start")
	}
}

func TestControllerShutdownWaitsForContinuation(t *testing.T) {
	fx := newFixture(t, "A")
	fx.fetcher.block = make(chan struct{})
	fx.fetcher.entered = make(chan string, 1)
	ctrl := newController(fx)

	ctrl.Activate()
	<-fx.fetcher.entered
	if err := ctrl.Shutdown(waitCtx(t)); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if ctrl.Status().Running {
		t.Fatal("expected no running continuation after shutdown")
	}
	if record := fx.record(t, "A"); record != nil {
		t.Fatalf("aborted fetch must roll back, got %#v", record)
	}
}

func TestControllerStatusReportsLastRun(t *testing.T) {
	fx := newFixture(t, "A")
	fx.fetcher.fail["A"] = errBoom
	ctrl := newController(fx)

	ctrl.Activate()
	waitRun(t, ctrl)

	status := ctrl.Status()
	if status.LastRun == nil {
		t.Fatal("expected last run in status")
	}
	if status.LastRun.Outcome != "failed" || status.LastRun.Error == "" {
		t.Fatalf("unexpected last run %#v", status.LastRun)
	}
}

func TestControllerStaysResponsiveDuringFetch(t *testing.T) {
	fx := newFixture(t, "A")
	fx.fetcher.block = make(chan struct{})
	fx.fetcher.entered = make(chan string, 1)
	ctrl := newController(fx)

	ctrl.Activate()
	select {
	case <-fx.fetcher.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("continuation never reached the fetch")
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if ctrl.NotifyObjectAvailable("unrelated") {
			t.Error("notification for an unrelated object must be ignored")
		}
		if !ctrl.Status().Running {
			t.Error("expected running status during the fetch")
		}
		if !ctrl.Stop() {
			t.Error("expected Stop to reach the running continuation")
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		close(fx.fetcher.block)
		t.Fatal("control calls blocked behind the in-flight fetch")
	}
	close(fx.fetcher.block)
	if summary := waitRun(t, ctrl); !summary.Cancelled {
		t.Fatalf("expected the stopped continuation to end cancelled, got %#v", summary)
	}
}

func TestControllerNotificationDuringFetchRefetches(t *testing.T) {
	fx := newFixture(t, "A")
	fx.fetcher.preparing["A"] = 1
	fx.fetcher.block = make(chan struct{})
	fx.fetcher.entered = make(chan string, 1)
	ctrl := newController(fx)

	ctrl.Activate()
	select {
	case <-fx.fetcher.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("continuation never reached the fetch")
	}
	if !ctrl.NotifyObjectAvailable("A") {
		t.Fatal("expected notification for the in-flight object to be accepted")
	}
	close(fx.fetcher.block)

	summary := waitRun(t, ctrl)
	if summary.Last != sweep.OutcomeFinished || summary.Processed != 1 {
		t.Fatalf("expected the 202 to be refetched and the sweep to finish, got %#v", summary)
	}
	if n := fx.fetcher.callsFor("A"); n != 2 {
		t.Fatalf("expected A fetched twice, got %d", n)
	}
	if got := ctrl.Status().WaitingFor; got != "" {
		t.Fatalf("sweep must not park after a refetch, waiting for %q", got)
	}
}
