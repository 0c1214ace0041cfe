package regbloom_test

import (
	"strconv"
	"testing"

	requireLib "github.com/stretchr/testify/require"
	"syreclabs.com/go/faker"

	"github.com/regbloom/regbloom"
)

func buildTestFilter(t *testing.T, itemsCount int) *regbloom.Filter {
	t.Helper()
	filter := regbloom.New(regbloom.FilterParams{ErrorRate: 0.001})
	filter.SetSalts([]string{"s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9", "s10"})
	for i := 0; i < itemsCount; i++ {
		filter.Add(strconv.Itoa(i))
	}
	return filter
}

func TestSnapshotTriggersBuild(t *testing.T) {
	require := requireLib.New(t)
	filter := buildTestFilter(t, 10)

	snapshot, err := filter.Snapshot()
	require.NoError(err, "no error expected on taking a snapshot")
	require.Greater(snapshot.Bits.Count(), uint(0), "a snapshot of a stale filter should build it first")

	_, ok := filter.OnBits()
	require.True(ok, "the filter should stay built after a snapshot")
}

func TestSnapshotWithoutSaltsFails(t *testing.T) {
	filter := regbloom.New(regbloom.FilterParams{})
	filter.Add("a@example.com")

	_, err := filter.Snapshot()
	requireLib.ErrorIs(t, err, regbloom.ErrConfiguration)
}

func TestSnapshotUnmarshalTruncatedFails(t *testing.T) {
	require := requireLib.New(t)
	snapshot, err := buildTestFilter(t, 10).Snapshot()
	require.NoError(err)

	data, err := snapshot.MarshalBinary()
	require.NoError(err)

	// cut in the middle of the first salt record: length (8 bytes),
	// salts count (4), first salt size (4) and one of its two bytes
	truncated := data[:8+4+4+1]
	restored := &regbloom.Snapshot{}
	require.Error(restored.UnmarshalBinary(truncated), "a truncated snapshot should not restore")
}

func TestSnapshotRoundTrip(t *testing.T) {
	require := requireLib.New(t)
	const itemsCount = 200
	filter := buildTestFilter(t, itemsCount)

	snapshot, err := filter.Snapshot()
	require.NoError(err)

	data, err := snapshot.MarshalBinary()
	require.NoError(err, "no error expected on snapshot serialization")

	restored := &regbloom.Snapshot{}
	require.NoError(restored.UnmarshalBinary(data), "no error expected on snapshot restore")

	require.Equal(snapshot.FilterLength, restored.FilterLength)
	require.Equal(snapshot.Salts, restored.Salts)
	require.True(snapshot.Bits.Equal(restored.Bits), "the restored bit vector should be identical")

	checker := regbloom.NewStaticChecker(*restored)
	require.Equal(snapshot.Bits.Count(), checker.OnBits())

	t.Run("get the existing data", func(t *testing.T) {
		require := requireLib.New(t)
		for i := 0; i < itemsCount; i++ {
			found, checkErr := checker.CheckOne(strconv.Itoa(i))
			require.NoError(checkErr, "check failed")
			require.Truef(found, "value %q expected in the restored filter", strconv.Itoa(i))
		}
	})

	t.Run("get random", func(t *testing.T) {
		require := requireLib.New(t)
		for i := 0; i < 1000; i++ {
			data := faker.RandomString(7)
			fromChecker, checkErr := checker.CheckOne(data)
			require.NoError(checkErr, "check failed")
			fromFilter, checkErr := filter.CheckOne(data)
			require.NoError(checkErr, "check failed")
			require.Equal(fromFilter, fromChecker, "both filters should respond with the same data")
		}
	})
}
