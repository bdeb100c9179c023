package loadtest

import (
	"encoding/csv"
	"fmt"
	"os"
)

// writeRunStats writes the figures from the final summary, one per row, to
// the given CSV file.
func writeRunStats(filename string, res RunResult) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	records := [][]string{
		{"Parameter", "Value", "Units"},
		{"run_id", res.RunID, ""},
		{"total_time", fmt.Sprintf("%.3f", res.Elapsed().Seconds()), "seconds"},
		{"total_messages", fmt.Sprintf("%d", res.MessagesToSend), "count"},
		{"threads", fmt.Sprintf("%d", res.Threads), "count"},
		{"message_size", fmt.Sprintf("%d", res.MessageSize), "bytes"},
		{"batch_mode", fmt.Sprintf("%t", res.BatchMode), ""},
		{"batch_size", fmt.Sprintf("%d", res.BatchSize), "count"},
		{"avg_message_rate", fmt.Sprintf("%.6f", res.MessagesPerSecond()), "messages per second"},
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	return f.Close()
}
