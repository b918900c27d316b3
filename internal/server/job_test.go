package server

import (
	"testing"
	"time"
)

func TestJobManager_CreateJob(t *testing.T) {
	jm := NewJobManager()

	config := RunConfig{GroupSize: 8, Strategy: "radixk", NumTiles: 1}
	job := jm.CreateJob(config)

	if job.ID == "" {
		t.Error("Job ID should not be empty")
	}

	if job.State != StatePending {
		t.Errorf("Initial state should be pending, got %s", job.State)
	}

	if job.Config.GroupSize != 8 {
		t.Errorf("Config not set correctly")
	}
}

func TestJobManager_GetJob(t *testing.T) {
	jm := NewJobManager()

	config := RunConfig{GroupSize: 4, Strategy: "radixk", NumTiles: 1}
	job := jm.CreateJob(config)

	retrieved, exists := jm.GetJob(job.ID)
	if !exists {
		t.Error("Job should exist")
	}

	if retrieved.ID != job.ID {
		t.Error("Retrieved wrong job")
	}

	_, exists = jm.GetJob("nonexistent")
	if exists {
		t.Error("Should not find nonexistent job")
	}
}

func TestJobManager_ListJobs(t *testing.T) {
	jm := NewJobManager()

	if len(jm.ListJobs()) != 0 {
		t.Error("Should start with no jobs")
	}

	jm.CreateJob(RunConfig{GroupSize: 4, Strategy: "radixk", NumTiles: 1})
	jm.CreateJob(RunConfig{GroupSize: 8, Strategy: "reduce", NumTiles: 2})

	jobs := jm.ListJobs()
	if len(jobs) != 2 {
		t.Errorf("Expected 2 jobs, got %d", len(jobs))
	}
}

func TestJobManager_UpdateJob(t *testing.T) {
	jm := NewJobManager()

	job := jm.CreateJob(RunConfig{GroupSize: 4, Strategy: "radixk", NumTiles: 1})

	err := jm.UpdateJob(job.ID, func(j *Job) {
		j.State = StateRunning
		j.Round = 1
		j.Composites = 3
	})

	if err != nil {
		t.Errorf("Update should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateRunning {
		t.Error("State should be updated")
	}
	if updated.Round != 1 {
		t.Error("Round should be updated")
	}
	if updated.Composites != 3 {
		t.Error("Composites should be updated")
	}

	err = jm.UpdateJob("nonexistent", func(j *Job) {})
	if err == nil {
		t.Error("Update of nonexistent job should fail")
	}
}

func TestJobManager_GetRunningJobs(t *testing.T) {
	jm := NewJobManager()

	j1 := jm.CreateJob(RunConfig{GroupSize: 4, Strategy: "radixk", NumTiles: 1})
	jm.CreateJob(RunConfig{GroupSize: 4, Strategy: "radixk", NumTiles: 1})

	jm.UpdateJob(j1.ID, func(j *Job) { j.State = StateRunning })

	running := jm.GetRunningJobs()
	if len(running) != 1 {
		t.Fatalf("Expected 1 running job, got %d", len(running))
	}
	if running[0].ID != j1.ID {
		t.Error("Wrong job marked running")
	}
}

func TestJobManager_ThreadSafety(t *testing.T) {
	jm := NewJobManager()

	job := jm.CreateJob(RunConfig{GroupSize: 4, Strategy: "radixk", NumTiles: 1})

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(round int) {
			jm.UpdateJob(job.ID, func(j *Job) {
				j.Round = round
				time.Sleep(1 * time.Millisecond)
			})
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	_, exists := jm.GetJob(job.ID)
	if !exists {
		t.Error("Job should still exist after concurrent updates")
	}
}
