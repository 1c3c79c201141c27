package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-chat/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-chat/pkg/util/errorutil"
)

type stubAdvisor struct {
	id    string
	ok    bool
	calls int
	seen  []domain.Technician
}

func (a *stubAdvisor) Suggest(_ context.Context, _ string, candidates []domain.Technician, _ map[string]int) (string, bool) {
	a.calls++
	a.seen = candidates
	return a.id, a.ok
}

func directory() []domain.Technician {
	return []domain.Technician{
		{ID: "ana", Name: "Ana", Specialty: "Network"},
		{ID: "bruno", Name: "Bruno", Specialty: "Network"},
		{ID: "carla", Name: "Carla", Specialty: "Software"},
	}
}

func TestAssignPrefersLeastLoadedSpecialist(t *testing.T) {
	svc := NewAssignmentService(AssignmentDependencies{})
	load := map[string]int{"ana": 2, "bruno": 0, "carla": 0}

	got, err := svc.Assign(context.Background(), "sem internet, wifi caindo", directory(), load)
	require.NoError(t, err)
	assert.Equal(t, SpecialtyNetwork, got.Specialty)
	assert.Equal(t, "Bruno", got.Technician.Name)
	assert.False(t, got.Advised)
}

func TestAssignTieGoesToDirectoryOrder(t *testing.T) {
	svc := NewAssignmentService(AssignmentDependencies{})
	got, err := svc.Assign(context.Background(), "roteador sem sinal", directory(), map[string]int{})
	require.NoError(t, err)
	assert.Equal(t, "ana", got.Technician.ID)
}

func TestAssignNoCandidates(t *testing.T) {
	svc := NewAssignmentService(AssignmentDependencies{})
	_, err := svc.Assign(context.Background(), "impressora quebrada", directory(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNoTechnicianAvailable))

	_, err = svc.Assign(context.Background(), "bom dia", directory(), nil)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNoTechnicianAvailable))
}

func TestAssignAdvisoryOverriddenByLoad(t *testing.T) {
	advisor := &stubAdvisor{id: "ana", ok: true}
	svc := NewAssignmentService(AssignmentDependencies{Advisor: advisor})

	got, err := svc.Assign(context.Background(), "sem internet", directory(), map[string]int{"ana": 3, "bruno": 1})
	require.NoError(t, err)
	assert.Equal(t, "bruno", got.Technician.ID)
	assert.False(t, got.Advised)
	assert.Equal(t, 1, advisor.calls)
	assert.Len(t, advisor.seen, 2, "advisor only sees specialty candidates")
}

func TestAssignAdvisoryHonoredOnTie(t *testing.T) {
	advisor := &stubAdvisor{id: "bruno", ok: true}
	svc := NewAssignmentService(AssignmentDependencies{Advisor: advisor})

	got, err := svc.Assign(context.Background(), "sem internet", directory(), map[string]int{"ana": 1, "bruno": 1})
	require.NoError(t, err)
	assert.Equal(t, "bruno", got.Technician.ID)
	assert.True(t, got.Advised)
}

func TestAssignAdvisoryOutsideCandidatesIgnored(t *testing.T) {
	advisor := &stubAdvisor{id: "carla", ok: true}
	svc := NewAssignmentService(AssignmentDependencies{Advisor: advisor})

	got, err := svc.Assign(context.Background(), "sem internet", directory(), map[string]int{"ana": 1, "bruno": 0})
	require.NoError(t, err)
	assert.Equal(t, "bruno", got.Technician.ID)
	assert.False(t, got.Advised)
}

func TestAssignNeverExceedsMinimumLoad(t *testing.T) {
	techs := []domain.Technician{
		{ID: "a", Specialty: "Hardware"},
		{ID: "b", Specialty: "Hardware"},
		{ID: "c", Specialty: "Hardware"},
		{ID: "d", Specialty: "Software"},
	}
	loads := []map[string]int{
		{"a": 0, "b": 0, "c": 0},
		{"a": 5, "b": 2, "c": 2},
		{"a": 1, "b": 4, "c": 0, "d": 0},
		{"a": 9, "b": 9, "c": 8},
	}
	for _, suggestion := range []string{"", "a", "b", "c", "d"} {
		for _, load := range loads {
			advisor := &stubAdvisor{id: suggestion, ok: suggestion != ""}
			svc := NewAssignmentService(AssignmentDependencies{Advisor: advisor})
			got, err := svc.Assign(context.Background(), "teclado com defeito", techs, load)
			require.NoError(t, err)

			minLoad := load["a"]
			for _, id := range []string{"b", "c"} {
				if load[id] < minLoad {
					minLoad = load[id]
				}
			}
			assert.Equal(t, minLoad, load[got.Technician.ID], "suggestion=%q load=%v", suggestion, load)
			assert.NotEqual(t, "d", got.Technician.ID)
		}
	}
}

func TestAssignAny(t *testing.T) {
	svc := NewAssignmentService(AssignmentDependencies{})
	got, err := svc.AssignAny(directory(), map[string]int{"ana": 1, "bruno": 1, "carla": 0})
	require.NoError(t, err)
	assert.Equal(t, "carla", got.Technician.ID)

	_, err = svc.AssignAny(nil, nil)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNoTechnicianAvailable))
}
