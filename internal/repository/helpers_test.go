package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jbweber/homelab/labpool/internal/datastore"
	"github.com/jbweber/homelab/labpool/internal/domain"
	"github.com/jbweber/homelab/labpool/internal/testutil"
)

var testCaps = domain.Caps{VcpuMax: 4, MemoryMax: 8, DiskMax: 100, MaxInstances: 2, MaxRunningInstances: 1}

// seedCourse creates a course with a VM model and enrolls the given students.
func seedCourse(t *testing.T, ds *datastore.Datastore, students ...string) (domain.Course, domain.VmModel) {
	t.Helper()
	ctx := context.Background()

	for _, id := range students {
		_, err := NewStudentRepository(ds.DB).Save(ctx, domain.Student{ID: id, FirstName: "First " + id, LastName: "Last"})
		require.NoError(t, err)
	}

	courses := NewCourseRepository(ds.DB)
	course, err := courses.Save(ctx, domain.Course{
		Name: "Applied Internet", Acronym: "AI", Enabled: true, MinMembers: 1, MaxMembers: 4, Caps: testCaps,
	})
	require.NoError(t, err)
	model, err := courses.SaveVmModel(ctx, domain.VmModel{CourseID: course.ID, Name: "ubuntu"})
	require.NoError(t, err)
	require.NoError(t, courses.Enroll(ctx, course.ID, students...))

	course.VmModelID = &model.ID
	return course, model
}

func newTestDatastore(t *testing.T) *datastore.Datastore {
	return testutil.NewTestDatastore(t)
}
