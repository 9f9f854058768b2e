package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/coachlink/coachlink/internal/model"
	"github.com/coachlink/coachlink/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bootstrapPair() (student, coach model.User) {
	student = model.User{ID: uuid.New(), Name: "Student Sam", Role: model.RoleStudent}
	coach = model.User{ID: uuid.New(), Name: "Coach Anna", Role: model.RoleCoach}
	return student, coach
}

func TestEnsureConnectsAndResolvesChannel(t *testing.T) {
	tr := &fakeTransport{}
	m := service.NewSessionManager(tr, &fakeTokenSource{}, &recordingSink{})
	b := service.NewBootstrapper(m, nil)
	student, coach := bootstrapPair()

	require.NoError(t, b.Ensure(context.Background(), student, coach))

	assert.True(t, b.IsReady())
	require.NotNil(t, m.Session())
	assert.Equal(t, service.ChannelID(student.ID, coach.ID), m.Session().ChannelID)
	assert.Equal(t, coach.ID, m.Session().Partner.ID)
}

func TestEnsureDerivesSameChannelFromEitherSide(t *testing.T) {
	student, coach := bootstrapPair()

	trStudent := &fakeTransport{}
	mStudent := service.NewSessionManager(trStudent, &fakeTokenSource{}, &recordingSink{})
	require.NoError(t, service.NewBootstrapper(mStudent, nil).Ensure(context.Background(), student, coach))

	trCoach := &fakeTransport{}
	mCoach := service.NewSessionManager(trCoach, &fakeTokenSource{}, &recordingSink{})
	require.NoError(t, service.NewBootstrapper(mCoach, nil).Ensure(context.Background(), coach, student))

	assert.Equal(t, mStudent.Session().ChannelID, mCoach.Session().ChannelID)
}

func TestEnsureIsIdempotent(t *testing.T) {
	tr := &fakeTransport{}
	ts := &fakeTokenSource{}
	m := service.NewSessionManager(tr, ts, &recordingSink{})
	b := service.NewBootstrapper(m, nil)
	student, coach := bootstrapPair()

	require.NoError(t, b.Ensure(context.Background(), student, coach))
	require.NoError(t, b.Ensure(context.Background(), student, coach))

	assert.Equal(t, 1, tr.connects)
	assert.Equal(t, 1, ts.calls)
}

func TestEnsureSurfacesTransportFailure(t *testing.T) {
	tr := &fakeTransport{connectErr: errors.New("gateway unreachable")}
	m := service.NewSessionManager(tr, &fakeTokenSource{}, &recordingSink{})
	b := service.NewBootstrapper(m, nil)
	student, coach := bootstrapPair()

	err := b.Ensure(context.Background(), student, coach)

	var transportErr *service.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.False(t, b.IsReady())
}

func TestShutdownTearsDownSession(t *testing.T) {
	tr := &fakeTransport{}
	m := service.NewSessionManager(tr, &fakeTokenSource{}, &recordingSink{})
	b := service.NewBootstrapper(m, nil)
	student, coach := bootstrapPair()

	require.NoError(t, b.Ensure(context.Background(), student, coach))
	require.NoError(t, b.Shutdown(context.Background()))

	assert.False(t, b.IsReady())
	assert.Nil(t, m.Session())
	assert.Equal(t, 1, tr.disconnects)
}
