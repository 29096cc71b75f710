// Package cli holds helpers shared by the relay commands: output
// formatting, progress reporting, signal handling and exit codes.
//
//	f := cli.NewFormatter(cli.FormatJSON)
//	if err := f.FormatTo(os.Stdout, results); err != nil {
//		return err
//	}
//
// Results that implement Tabular print as aligned columns in text mode and
// are the only ones accepted by the CSV formatter.
package cli
