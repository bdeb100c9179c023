package loadtest

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteRunStats(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	res := RunResult{
		RunID:          "run-1",
		Started:        start,
		Ended:          start.Add(4 * time.Second),
		MessagesToSend: 1000,
		Threads:        2,
		MessageSize:    256,
		BatchSize:      50,
		BatchMode:      true,
	}
	filename := filepath.Join(t.TempDir(), "stats.csv")
	require.NoError(t, writeRunStats(filename, res))

	f, err := os.Open(filename)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	values := make(map[string]string)
	for _, r := range records[1:] {
		values[r[0]] = r[1]
	}
	require.Equal(t, []string{"Parameter", "Value", "Units"}, records[0])
	require.Equal(t, "run-1", values["run_id"])
	require.Equal(t, "4.000", values["total_time"])
	require.Equal(t, "1000", values["total_messages"])
	require.Equal(t, "true", values["batch_mode"])
	require.Equal(t, "250.000000", values["avg_message_rate"])
}

func TestWriteRunStatsUnwritableFile(t *testing.T) {
	err := writeRunStats(filepath.Join(t.TempDir(), "missing", "stats.csv"), RunResult{})
	require.Error(t, err)
}
