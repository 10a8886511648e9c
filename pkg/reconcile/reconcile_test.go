package reconcile

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/OFFIS-RIT/netswatch/pkg/logger"
	"github.com/OFFIS-RIT/netswatch/pkg/logger/memory"
	"github.com/OFFIS-RIT/netswatch/pkg/store"
	"github.com/OFFIS-RIT/netswatch/pkg/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	subnetsNS = "netswatch/network/subnets"
	nodesNS   = "netswatch/network/nodes"
)

func subnet(cidr string) store.Leaf {
	return store.Leaf{Key: "/" + subnetsNS + "/" + cidr, Value: `{}`}
}

func node(org, ip string) store.Leaf {
	return store.Leaf{Key: "/" + nodesNS + "/" + org + "/" + ip, Value: `{"node_type":"node"}`}
}

type recordingObserver struct {
	reports []*Report
	errs    []error
}

func (o *recordingObserver) ObserveReconcile(report *Report, err error) {
	o.reports = append(o.reports, report)
	o.errs = append(o.errs, err)
}

func newTestReconciler(t *testing.T, fake *storetest.Fake) (*Reconciler, *memory.Recorder, *recordingObserver) {
	t.Helper()
	rec := memory.NewRecorder()
	obs := &recordingObserver{}
	r, err := NewReconciler(NewReconcilerParams{
		Store:       fake,
		SubnetsPath: subnetsNS,
		NodesPath:   nodesNS,
		Logger:      logger.New(rec),
		Observer:    obs,
	})
	require.NoError(t, err)
	return r, rec, obs
}

func seedExample(fake *storetest.Fake) {
	fake.Seed(subnetsNS, storetest.FlatTree(subnetsNS, subnet("10.0.0.1-20"), subnet("10.0.0.2-20")))
	fake.Seed(nodesNS, storetest.NestedTree(nodesNS,
		storetest.Dir{Key: "/" + nodesNS + "/telecom", Leaves: []store.Leaf{node("telecom", "10.0.0.1")}},
		storetest.Dir{Key: "/" + nodesNS + "/unicom", Leaves: []store.Leaf{node("unicom", "10.0.0.3")}},
	))
}

func TestNewReconciler_Validation(t *testing.T) {
	_, err := NewReconciler(NewReconcilerParams{SubnetsPath: "a", NodesPath: "b"})
	assert.Error(t, err)
	_, err = NewReconciler(NewReconcilerParams{Store: storetest.NewFake(), NodesPath: "b"})
	assert.Error(t, err)
}

func TestRun_DeletesExactlyTheOrphan(t *testing.T) {
	fake := storetest.NewFake()
	seedExample(fake)
	r, _, obs := newTestReconciler(t, fake)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []Orphan{{IP: "10.0.0.3", Key: "/" + nodesNS + "/unicom/10.0.0.3"}}, report.Orphans)
	assert.Equal(t, []string{"/" + nodesNS + "/unicom/10.0.0.3"}, fake.Deletes())
	assert.Equal(t, []string{"/" + nodesNS + "/unicom/10.0.0.3"}, report.Deleted)
	assert.NotEmpty(t, report.RunID)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
	require.Len(t, obs.reports, 1)
	assert.NoError(t, obs.errs[0])
}

func TestPlan_IsIdempotent(t *testing.T) {
	fake := storetest.NewFake()
	seedExample(fake)
	r, _, _ := newTestReconciler(t, fake)

	first, err := r.Run(context.Background())
	require.NoError(t, err)
	seedExample(fake)
	second, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Orphans, second.Orphans)
	assert.Equal(t, []string{
		"/" + nodesNS + "/unicom/10.0.0.3",
		"/" + nodesNS + "/unicom/10.0.0.3",
	}, fake.Deletes())
}

func TestPlan_LastWriteWinsForDuplicateIP(t *testing.T) {
	fake := storetest.NewFake()
	fake.Seed(subnetsNS, storetest.FlatTree(subnetsNS))
	fake.Seed(nodesNS, storetest.NestedTree(nodesNS,
		storetest.Dir{Key: "/" + nodesNS + "/a", Leaves: []store.Leaf{node("a", "10.9.0.0")}},
		storetest.Dir{Key: "/" + nodesNS + "/b", Leaves: []store.Leaf{node("b", "10.9.0.0")}},
	))
	r, _, _ := newTestReconciler(t, fake)

	plan, err := r.Plan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"10.9.0.0": "/" + nodesNS + "/b/10.9.0.0"}, plan.NodeKeys)
	assert.Equal(t, []Orphan{{IP: "10.9.0.0", Key: "/" + nodesNS + "/b/10.9.0.0"}}, plan.Orphans)
	assert.Empty(t, plan.SubnetIPs)
	assert.Empty(t, fake.Deletes())
}

func TestRun_DeleteFailuresDoNotStopBatch(t *testing.T) {
	fake := storetest.NewFake()
	fake.Seed(subnetsNS, storetest.FlatTree(subnetsNS, subnet("10.0.0.1-20")))
	fake.Seed(nodesNS, storetest.NestedTree(nodesNS,
		storetest.Dir{Key: "/" + nodesNS + "/x", Leaves: []store.Leaf{
			node("x", "10.0.0.4"),
			node("x", "10.0.0.5"),
			node("x", "10.0.0.6"),
		}},
	))
	fake.DeleteErrs["/"+nodesNS+"/x/10.0.0.4"] = &store.HTTPStatusError{Op: http.MethodDelete, StatusCode: http.StatusForbidden, Body: "denied"}
	fake.DeleteErrs["/"+nodesNS+"/x/10.0.0.5"] = &store.HTTPStatusError{Op: http.MethodDelete, StatusCode: http.StatusNotFound, Body: "Key not found"}
	r, rec, _ := newTestReconciler(t, fake)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, fake.Deletes(), 3)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "/"+nodesNS+"/x/10.0.0.4", report.Failed[0].Key)
	assert.Equal(t, []string{"/" + nodesNS + "/x/10.0.0.5"}, report.Gone)
	assert.Equal(t, []string{"/" + nodesNS + "/x/10.0.0.6"}, report.Deleted)
	assert.Equal(t, 1, rec.Count("error"), rec.String())
}

func TestRun_AbortsWithoutDeleting(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *storetest.Fake)
		check func(t *testing.T, err error)
	}{
		{
			name: "subnet fetch transport error",
			setup: func(f *storetest.Fake) {
				seedExample(f)
				f.FetchErrs[subnetsNS] = &store.TransportError{Op: http.MethodGet, Err: errors.New("refused")}
			},
			check: func(t *testing.T, err error) {
				var te *store.TransportError
				assert.ErrorAs(t, err, &te)
			},
		},
		{
			name: "subnet body malformed",
			setup: func(f *storetest.Fake) {
				seedExample(f)
				f.Seed(subnetsNS, []byte("not json"))
			},
			check: func(t *testing.T, err error) {
				assert.True(t, store.IsMalformed(err))
			},
		},
		{
			name: "subnet listing missing",
			setup: func(f *storetest.Fake) {
				seedExample(f)
				f.Seed(subnetsNS, storetest.EmptyTree(subnetsNS))
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrUnexpectedShape)
			},
		},
		{
			name: "subnet key without ip",
			setup: func(f *storetest.Fake) {
				seedExample(f)
				f.Seed(subnetsNS, storetest.FlatTree(subnetsNS, store.Leaf{Key: "/" + subnetsNS + "/bogus"}))
			},
			check: func(t *testing.T, err error) {
				assert.Error(t, err)
			},
		},
		{
			name: "node fetch status error",
			setup: func(f *storetest.Fake) {
				seedExample(f)
				f.FetchErrs[nodesNS] = &store.HTTPStatusError{Op: http.MethodGet, StatusCode: http.StatusServiceUnavailable}
			},
			check: func(t *testing.T, err error) {
				var se *store.HTTPStatusError
				assert.ErrorAs(t, err, &se)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := storetest.NewFake()
			tc.setup(fake)
			r, rec, obs := newTestReconciler(t, fake)

			_, err := r.Run(context.Background())

			require.Error(t, err)
			tc.check(t, err)
			assert.Empty(t, fake.Deletes())
			assert.GreaterOrEqual(t, rec.Count("error"), 1, rec.String())
			require.Len(t, obs.errs, 1)
			assert.Error(t, obs.errs[0])
		})
	}
}

func TestRun_EmptySubnetListDeletesAllNodes(t *testing.T) {
	fake := storetest.NewFake()
	fake.Seed(subnetsNS, storetest.FlatTree(subnetsNS))
	fake.Seed(nodesNS, storetest.NestedTree(nodesNS,
		storetest.Dir{Key: "/" + nodesNS + "/a", Leaves: []store.Leaf{node("a", "10.1.0.0"), node("a", "10.2.0.0")}},
	))
	r, _, _ := newTestReconciler(t, fake)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/" + nodesNS + "/a/10.1.0.0", "/" + nodesNS + "/a/10.2.0.0"}, report.Deleted)
}

func TestRun_NoOrgsIsNoop(t *testing.T) {
	tests := []struct {
		name  string
		nodes []byte
	}{
		{"missing listing", storetest.EmptyTree(nodesNS)},
		{"empty listing", storetest.NestedTree(nodesNS)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := storetest.NewFake()
			fake.Seed(subnetsNS, storetest.FlatTree(subnetsNS, subnet("10.0.0.1-20")))
			fake.Seed(nodesNS, tc.nodes)
			r, _, _ := newTestReconciler(t, fake)

			report, err := r.Run(context.Background())
			require.NoError(t, err)
			assert.Empty(t, report.Orphans)
			assert.Empty(t, fake.Deletes())
		})
	}
}

func TestPlan_OrgWithoutNodesIsSkipped(t *testing.T) {
	fake := storetest.NewFake()
	fake.Seed(subnetsNS, storetest.FlatTree(subnetsNS, subnet("10.0.0.1-20")))
	fake.Seed(nodesNS, []byte(`{"node":{"key":"/`+nodesNS+`","dir":true,"nodes":[
		{"key":"/`+nodesNS+`/broken","dir":true},
		{"key":"/`+nodesNS+`/ok","dir":true,"nodes":[{"key":"/`+nodesNS+`/ok/10.0.0.7","value":"{}"}]}
	]}}`))
	r, rec, _ := newTestReconciler(t, fake)

	plan, err := r.Plan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Orphan{{IP: "10.0.0.7", Key: "/" + nodesNS + "/ok/10.0.0.7"}}, plan.Orphans)
	assert.Equal(t, 1, rec.Count("error"), rec.String())
}
