package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"medreminder/internal/application/dto"
	"medreminder/internal/domain/constant"
	"medreminder/internal/domain/entity"
	appErrors "medreminder/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner = "user-1"

func dailyRequest(at string) dto.CreateMedicationRequest {
	return dto.CreateMedicationRequest{
		Name:               "Aspirin",
		Dosage:             "100mg",
		Frequency:          "daily",
		ReminderTimes:      map[string]string{"daily": at},
		NotificationTarget: "device-token",
	}
}

func TestAddMedication_SchedulesFirstOccurrence(t *testing.T) {
	env := newTestEnv(t, utc("2024-01-01 08:00"), &fakeNotifier{})
	ctx := context.Background()

	resp, err := env.svc.AddMedication(ctx, owner, dailyRequest("09:00"))
	require.NoError(t, err)
	require.NotNil(t, resp.NextReminder)
	assert.True(t, resp.NextReminder.Equal(utc("2024-01-01 09:00")))
	assert.Equal(t, "daily", resp.Frequency)

	jobID := entity.JobID(resp.ID, utc("2024-01-01 09:00"))
	assert.Equal(t, []string{jobID}, env.jobs.armed())

	stored := env.medication(t, resp.ID)
	assert.Equal(t, jobID, stored.CurrentJobID)

	job, err := env.jobRepo.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, constant.JobStatusPending, job.Status)
	assert.Equal(t, resp.ID, job.MedicationID)
}

func TestAddMedication_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		req     dto.CreateMedicationRequest
		wantErr error
	}{
		{
			name:    "missing name",
			req:     dto.CreateMedicationRequest{Dosage: "1", Frequency: "daily", ReminderTimes: map[string]string{"daily": "09:00"}},
			wantErr: appErrors.ErrValidation,
		},
		{
			name:    "missing reminder times",
			req:     dto.CreateMedicationRequest{Name: "A", Dosage: "1", Frequency: "weekly"},
			wantErr: appErrors.ErrValidation,
		},
		{
			name:    "missing specific time",
			req:     dto.CreateMedicationRequest{Name: "A", Dosage: "1", Frequency: "specific"},
			wantErr: appErrors.ErrValidation,
		},
		{
			name:    "unknown frequency",
			req:     dto.CreateMedicationRequest{Name: "A", Dosage: "1", Frequency: "monthly", ReminderTimes: map[string]string{"daily": "09:00"}},
			wantErr: appErrors.ErrValidation,
		},
		{
			name:    "malformed time",
			req:     dto.CreateMedicationRequest{Name: "A", Dosage: "1", Frequency: "daily", ReminderTimes: map[string]string{"daily": "25:00"}},
			wantErr: appErrors.ErrScheduling,
		},
		{
			name:    "unknown weekday",
			req:     dto.CreateMedicationRequest{Name: "A", Dosage: "1", Frequency: "weekly", ReminderTimes: map[string]string{"someday": "09:00"}},
			wantErr: appErrors.ErrScheduling,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, utc("2024-01-01 08:00"), &fakeNotifier{})
			_, err := env.svc.AddMedication(context.Background(), owner, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)

			list, err := env.svc.ListMedications(context.Background(), owner)
			require.NoError(t, err)
			assert.Empty(t, list, "nothing is persisted on failure")
			assert.Empty(t, env.jobs.armed())
		})
	}
}

func TestFire_DeliversAndRearmsDaily(t *testing.T) {
	notifier := &fakeNotifier{}
	env := newTestEnv(t, utc("2024-01-01 08:00"), notifier)
	ctx := context.Background()

	resp, err := env.svc.AddMedication(ctx, owner, dailyRequest("09:00"))
	require.NoError(t, err)
	firstJob := entity.JobID(resp.ID, utc("2024-01-01 09:00"))

	env.clock.Advance(time.Hour)
	env.jobs.Fire(t, firstJob)

	require.Len(t, notifier.messages(), 1)
	msg := notifier.messages()[0]
	assert.Equal(t, "device-token", msg.target)
	assert.Equal(t, "Medication Reminder", msg.title)
	assert.Equal(t, "It's time to take your medication 'Aspirin' with dosage '100mg'.", msg.body)

	fired, err := env.jobRepo.Get(ctx, firstJob)
	require.NoError(t, err)
	assert.Equal(t, constant.JobStatusFired, fired.Status)
	assert.Equal(t, 1, fired.Attempts)
	assert.Empty(t, fired.LastError)

	nextJob := entity.JobID(resp.ID, utc("2024-01-02 09:00"))
	assert.Equal(t, []string{nextJob}, env.jobs.armed())
	stored := env.medication(t, resp.ID)
	assert.Equal(t, nextJob, stored.CurrentJobID)
	assert.True(t, stored.NextReminder.Equal(utc("2024-01-02 09:00")))
}

func TestDeleteMedication_CancelsPendingJob(t *testing.T) {
	notifier := &fakeNotifier{}
	env := newTestEnv(t, utc("2024-01-01 08:00"), notifier)
	ctx := context.Background()

	resp, err := env.svc.AddMedication(ctx, owner, dailyRequest("09:00"))
	require.NoError(t, err)
	jobID := env.medication(t, resp.ID).CurrentJobID

	require.NoError(t, env.svc.DeleteMedication(ctx, owner, resp.ID))

	job, err := env.jobRepo.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, constant.JobStatusCancelled, job.Status)
	assert.Empty(t, env.jobs.armed())
	assert.Empty(t, notifier.messages())

	_, err = env.medRepo.FindByID(ctx, resp.ID)
	assert.ErrorIs(t, err, appErrors.ErrMedicationNotFound)

	// Deleting again is not an error.
	assert.NoError(t, env.svc.DeleteMedication(ctx, owner, resp.ID))
	assert.NoError(t, env.svc.DeleteMedication(ctx, owner, 9999))
}

func TestDeleteMedication_Forbidden(t *testing.T) {
	env := newTestEnv(t, utc("2024-01-01 08:00"), &fakeNotifier{})
	ctx := context.Background()

	resp, err := env.svc.AddMedication(ctx, owner, dailyRequest("09:00"))
	require.NoError(t, err)

	assert.ErrorIs(t, env.svc.DeleteMedication(ctx, "intruder", resp.ID), appErrors.ErrForbidden)
	assert.Len(t, env.jobs.armed(), 1, "job survives a forbidden delete")
}

func TestFire_WeeklyDeliveryFailureStillRearms(t *testing.T) {
	notifier := &fakeNotifier{failAlways: true}
	env := newTestEnv(t, utc("2024-01-01 08:00"), notifier)
	ctx := context.Background()

	resp, err := env.svc.AddMedication(ctx, owner, dto.CreateMedicationRequest{
		Name:               "Vitamin D",
		Dosage:             "1 tablet",
		Frequency:          "weekly",
		ReminderTimes:      map[string]string{"monday": "09:00"},
		NotificationTarget: "device-token",
	})
	require.NoError(t, err)
	firstJob := entity.JobID(resp.ID, utc("2024-01-01 09:00"))
	require.Equal(t, []string{firstJob}, env.jobs.armed())

	env.jobs.Fire(t, firstJob)

	assert.Equal(t, testDispatchConfig.MaxAttempts, notifier.callCount())
	job, err := env.jobRepo.Get(ctx, firstJob)
	require.NoError(t, err)
	assert.Equal(t, constant.JobStatusFired, job.Status)
	assert.Equal(t, testDispatchConfig.MaxAttempts, job.Attempts)
	assert.Contains(t, job.LastError, "push service unavailable")

	nextWeek := entity.JobID(resp.ID, utc("2024-01-08 09:00"))
	assert.Equal(t, []string{nextWeek}, env.jobs.armed())
}

func TestFire_SpecificIsTerminal(t *testing.T) {
	notifier := &fakeNotifier{}
	env := newTestEnv(t, utc("2024-01-01 08:00"), notifier)
	ctx := context.Background()

	resp, err := env.svc.AddMedication(ctx, owner, dto.CreateMedicationRequest{
		Name:               "Antibiotic",
		Dosage:             "500mg",
		Frequency:          "specific",
		SpecificTime:       "2024-01-05 12:30:00",
		NotificationTarget: "device-token",
	})
	require.NoError(t, err)
	jobID := entity.JobID(resp.ID, utc("2024-01-05 12:30"))
	require.Equal(t, []string{jobID}, env.jobs.armed())

	env.jobs.Fire(t, jobID)

	assert.Len(t, notifier.messages(), 1)
	assert.Empty(t, env.jobs.armed())
	assert.Empty(t, env.pendingJobs(t, resp.ID))
	stored := env.medication(t, resp.ID)
	assert.Nil(t, stored.NextReminder)
	assert.Equal(t, jobID, stored.CurrentJobID)
}

func TestAddMedication_PastSpecificFiresImmediately(t *testing.T) {
	env := newTestEnv(t, utc("2024-01-01 08:00"), &fakeNotifier{})

	resp, err := env.svc.AddMedication(context.Background(), owner, dto.CreateMedicationRequest{
		Name:         "Antibiotic",
		Dosage:       "500mg",
		Frequency:    "specific",
		SpecificTime: "2023-12-31 12:00:00",
	})
	require.NoError(t, err)
	assert.True(t, resp.NextReminder.Equal(utc("2023-12-31 12:00")))
	assert.Equal(t, []string{entity.JobID(resp.ID, utc("2023-12-31 12:00"))}, env.jobs.armed())
}

func TestUpdateMedication_ReplacesJob(t *testing.T) {
	env := newTestEnv(t, utc("2024-01-01 08:00"), &fakeNotifier{})
	ctx := context.Background()

	resp, err := env.svc.AddMedication(ctx, owner, dailyRequest("09:00"))
	require.NoError(t, err)
	oldJob := env.medication(t, resp.ID).CurrentJobID

	updated, err := env.svc.UpdateMedication(ctx, owner, resp.ID, dto.UpdateMedicationRequest{
		ReminderTimes: map[string]string{"daily": "07:30"},
	})
	require.NoError(t, err)
	assert.True(t, updated.NextReminder.Equal(utc("2024-01-02 07:30")))

	newJob := entity.JobID(resp.ID, utc("2024-01-02 07:30"))
	assert.Equal(t, []string{newJob}, env.jobs.armed())

	old, err := env.jobRepo.Get(ctx, oldJob)
	require.NoError(t, err)
	assert.Equal(t, constant.JobStatusCancelled, old.Status)

	pending := env.pendingJobs(t, resp.ID)
	require.Len(t, pending, 1)
	assert.Equal(t, newJob, pending[0].ID)
}

func TestUpdateMedication_SwitchToWeekly(t *testing.T) {
	env := newTestEnv(t, utc("2024-01-03 07:00"), &fakeNotifier{})
	ctx := context.Background()

	resp, err := env.svc.AddMedication(ctx, owner, dailyRequest("09:00"))
	require.NoError(t, err)

	updated, err := env.svc.UpdateMedication(ctx, owner, resp.ID, dto.UpdateMedicationRequest{
		Frequency:     strPtr("weekly"),
		ReminderTimes: map[string]string{"monday": "08:00", "friday": "18:00"},
	})
	require.NoError(t, err)
	assert.Equal(t, "weekly", updated.Frequency)
	assert.True(t, updated.NextReminder.Equal(utc("2024-01-05 18:00")))
	assert.Equal(t, []string{entity.JobID(resp.ID, utc("2024-01-05 18:00"))}, env.jobs.armed())
}

func TestUpdateMedication_FieldsOnlyKeepsJob(t *testing.T) {
	env := newTestEnv(t, utc("2024-01-01 08:00"), &fakeNotifier{})
	ctx := context.Background()

	resp, err := env.svc.AddMedication(ctx, owner, dailyRequest("09:00"))
	require.NoError(t, err)
	jobID := env.medication(t, resp.ID).CurrentJobID

	updated, err := env.svc.UpdateMedication(ctx, owner, resp.ID, dto.UpdateMedicationRequest{
		Dosage: strPtr("200mg"),
	})
	require.NoError(t, err)
	assert.Equal(t, "200mg", updated.Dosage)
	assert.Equal(t, []string{jobID}, env.jobs.armed())
}

func TestUpdateMedication_Errors(t *testing.T) {
	env := newTestEnv(t, utc("2024-01-01 08:00"), &fakeNotifier{})
	ctx := context.Background()

	resp, err := env.svc.AddMedication(ctx, owner, dailyRequest("09:00"))
	require.NoError(t, err)
	jobID := env.medication(t, resp.ID).CurrentJobID

	_, err = env.svc.UpdateMedication(ctx, owner, 9999, dto.UpdateMedicationRequest{Dosage: strPtr("1")})
	assert.ErrorIs(t, err, appErrors.ErrMedicationNotFound)

	_, err = env.svc.UpdateMedication(ctx, "intruder", resp.ID, dto.UpdateMedicationRequest{Dosage: strPtr("1")})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = env.svc.UpdateMedication(ctx, owner, resp.ID, dto.UpdateMedicationRequest{Name: strPtr(" ")})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	// Switching to weekly without weekday times cannot be scheduled; the old job stays.
	_, err = env.svc.UpdateMedication(ctx, owner, resp.ID, dto.UpdateMedicationRequest{Frequency: strPtr("weekly")})
	assert.ErrorIs(t, err, appErrors.ErrScheduling)
	assert.Equal(t, []string{jobID}, env.jobs.armed())
	assert.Equal(t, "daily", env.medication(t, resp.ID).FrequencyKind)
}

func TestUpdateMedication_AfterJobFired(t *testing.T) {
	notifier := newBlockingNotifier()
	env := newTestEnv(t, utc("2024-01-01 08:00"), notifier)
	ctx := context.Background()

	resp, err := env.svc.AddMedication(ctx, owner, dailyRequest("09:00"))
	require.NoError(t, err)
	firedJob := env.medication(t, resp.ID).CurrentJobID

	done := make(chan struct{})
	go func() {
		defer close(done)
		env.jobs.Fire(t, firedJob)
	}()
	<-notifier.entered

	job, err := env.jobRepo.Get(ctx, firedJob)
	require.NoError(t, err)
	require.Equal(t, constant.JobStatusFired, job.Status)

	updated, err := env.svc.UpdateMedication(ctx, owner, resp.ID, dto.UpdateMedicationRequest{
		ReminderTimes: map[string]string{"daily": "10:00"},
	})
	require.NoError(t, err, "cancelling a fired job is a no-op")
	newJob := entity.JobID(resp.ID, utc("2024-01-01 10:00"))
	assert.True(t, updated.NextReminder.Equal(utc("2024-01-01 10:00")))

	close(notifier.release)
	<-done

	// The in-flight dispatch must not arm a second job.
	assert.Equal(t, []string{newJob}, env.jobs.armed())
	pending := env.pendingJobs(t, resp.ID)
	require.Len(t, pending, 1)
	assert.Equal(t, newJob, pending[0].ID)
}

func TestMedication_AtMostOnePendingJob(t *testing.T) {
	env := newTestEnv(t, utc("2024-01-01 08:00"), &fakeNotifier{})
	ctx := context.Background()

	resp, err := env.svc.AddMedication(ctx, owner, dailyRequest("09:00"))
	require.NoError(t, err)
	id := resp.ID

	check := func(step string) {
		t.Helper()
		assert.LessOrEqual(t, len(env.pendingJobs(t, id)), 1, step)
		assert.LessOrEqual(t, len(env.jobs.armed()), 1, step)
	}
	check("add")

	for _, at := range []string{"10:00", "10:00", "06:15"} {
		_, err := env.svc.UpdateMedication(ctx, owner, id, dto.UpdateMedicationRequest{
			ReminderTimes: map[string]string{"daily": at},
		})
		require.NoError(t, err)
		check("update " + at)
	}

	env.jobs.Fire(t, env.medication(t, id).CurrentJobID)
	check("fire")

	_, err = env.svc.UpdateMedication(ctx, owner, id, dto.UpdateMedicationRequest{
		Frequency:    strPtr("specific"),
		SpecificTime: strPtr("2024-02-01 08:00:00"),
	})
	require.NoError(t, err)
	check("switch to specific")

	require.NoError(t, env.svc.DeleteMedication(ctx, owner, id))
	check("delete")
	assert.Empty(t, env.pendingJobs(t, id))
}

func TestUpdateMedication_ConcurrentUpdates(t *testing.T) {
	env := newTestEnv(t, utc("2024-01-01 08:00"), &fakeNotifier{})
	ctx := context.Background()

	resp, err := env.svc.AddMedication(ctx, owner, dailyRequest("09:00"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.svc.UpdateMedication(ctx, owner, resp.ID, dto.UpdateMedicationRequest{
				ReminderTimes: map[string]string{"daily": fmt.Sprintf("1%d:00", i)},
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	armed := env.jobs.armed()
	require.Len(t, armed, 1)
	pending := env.pendingJobs(t, resp.ID)
	require.Len(t, pending, 1)
	assert.Equal(t, armed[0], pending[0].ID)
	assert.Equal(t, armed[0], env.medication(t, resp.ID).CurrentJobID)
	assert.Equal(t, 0, env.svc.(*medicationService).locks.size())
}

func TestListAndGetMedication(t *testing.T) {
	env := newTestEnv(t, utc("2024-01-01 08:00"), &fakeNotifier{})
	ctx := context.Background()

	first, err := env.svc.AddMedication(ctx, owner, dailyRequest("09:00"))
	require.NoError(t, err)
	_, err = env.svc.AddMedication(ctx, owner, dailyRequest("21:00"))
	require.NoError(t, err)
	_, err = env.svc.AddMedication(ctx, "someone-else", dailyRequest("12:00"))
	require.NoError(t, err)

	list, err := env.svc.ListMedications(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	got, err := env.svc.GetMedication(ctx, owner, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Aspirin", got.Name)

	_, err = env.svc.GetMedication(ctx, "someone-else", first.ID)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	_, err = env.svc.GetMedication(ctx, owner, 9999)
	assert.ErrorIs(t, err, appErrors.ErrMedicationNotFound)
}
