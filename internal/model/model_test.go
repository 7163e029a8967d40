package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResourceCapacity(t *testing.T) {
	seats := 2
	ev := Resource{Kind: KindEvent, TotalSeats: &seats}
	require.True(t, ev.Bounded())
	require.Equal(t, 2, ev.Remaining())
	require.False(t, ev.IsFull())

	ev.RegisteredCount = 2
	require.True(t, ev.IsFull())
	require.Zero(t, ev.Remaining())

	course := Resource{Kind: KindCourse, RegisteredCount: 1000}
	require.False(t, course.Bounded())
	require.False(t, course.IsFull())
	require.Equal(t, -1, course.Remaining())
}

func TestRegistrationRef(t *testing.T) {
	var reg Registration
	reg.SetRef(ResourceRef{Kind: KindCourse, ID: "c1"})
	require.Nil(t, reg.EventID)
	require.Nil(t, reg.ProductID)
	require.Equal(t, "c1", *reg.CourseID)
	require.Equal(t, ResourceRef{Kind: KindCourse, ID: "c1"}, reg.Ref())

	reg.SetRef(ResourceRef{Kind: KindProduct, ID: "p1"})
	require.Nil(t, reg.CourseID)
	require.Equal(t, ResourceRef{Kind: KindProduct, ID: "p1"}, reg.Ref())
}

func TestRegistrationKey(t *testing.T) {
	require.Equal(t, "user42_ev-9", RegistrationKey("user42", "ev-9"))
}

func TestOptionalString(t *testing.T) {
	require.Nil(t, OptionalString(""))
	require.Nil(t, OptionalString("  \t"))
	require.Equal(t, "bkash", *OptionalString(" bkash "))
}

func TestHasCompleted(t *testing.T) {
	reg := Registration{CompletedLessonIDs: []string{"l1", "l3"}}
	require.True(t, reg.HasCompleted("l3"))
	require.False(t, reg.HasCompleted("l2"))
}

func TestRegistrationOmitsUnsetFields(t *testing.T) {
	reg := Registration{ID: "r1", Name: "A", Email: "a@b.co", Status: StatusPending}
	reg.SetRef(ResourceRef{Kind: KindEvent, ID: "e1"})

	out, err := json.Marshal(reg)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(out, &fields))
	require.Equal(t, "e1", fields["eventId"])
	for _, k := range []string{"courseId", "productId", "userId", "phone", "trxId", "screenshotUrl", "completedLessonIds"} {
		require.NotContains(t, fields, k)
	}
}

func TestKindAndStatusValidity(t *testing.T) {
	require.True(t, KindProduct.Valid())
	require.False(t, ResourceKind("webinar").Valid())
	require.True(t, PricingPaid.Valid())
	require.False(t, PricingType("donation").Valid())
	require.True(t, StatusApproved.Valid())
	require.False(t, RegistrationStatus("rejected").Valid())
}

func TestResourceJSONReportsRemainingSeats(t *testing.T) {
	seats := 5
	ev := Resource{ID: "e1", Kind: KindEvent, TotalSeats: &seats, RegisteredCount: 5}

	out, err := json.Marshal(ev)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(out, &fields))
	require.EqualValues(t, 0, fields["remainingSeats"])
	require.EqualValues(t, 5, fields["registeredCount"])
	require.Equal(t, "e1", fields["id"])
	require.NotContains(t, fields, "purgeRegistrations")

	out, err = json.Marshal(Resource{ID: "c1", Kind: KindCourse})
	require.NoError(t, err)
	fields = nil
	require.NoError(t, json.Unmarshal(out, &fields))
	require.NotContains(t, fields, "remainingSeats")

	var back Resource
	require.NoError(t, json.Unmarshal([]byte(`{"id":"e1","kind":"event","totalSeats":5,"registeredCount":2,"remainingSeats":3}`), &back))
	require.Equal(t, 3, back.Remaining())
}
