package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
)

func writeMarkdown(w io.Writer, s Summary) error {
	md := markdown.NewMarkdown(w)

	md.H1("Webhook Solver Run")
	md.PlainText("")

	rows := [][]string{
		{"Run", "`" + s.RunID + "`"},
		{"State", s.State},
		{"Webhook", orDash(s.CallbackURL)},
		{"Access token", credentialLine(s)},
	}
	if s.Artifact != nil {
		rows = append(rows, []string{"Question", "`" + s.Artifact.LocalPath + "` (" + strconv.FormatInt(s.Artifact.ByteLength, 10) + " bytes)"})
	} else {
		rows = append(rows, []string{"Question", "none"})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	md.H2("Transitions")
	md.PlainText("")
	md.PlainText(strings.Join(s.History, " → "))
	md.PlainText("")

	if s.DownloadError != "" {
		md.Warningf("Question download failed: %s", s.DownloadError)
		md.PlainText("")
	}

	if s.Submission != nil {
		md.H2("Submission")
		md.PlainText("")
		if s.SubmissionAccepted {
			md.Note("Submission accepted with HTTP " + strconv.Itoa(s.Submission.StatusCode) + ".")
		} else {
			md.Warningf("Submission returned HTTP %d.", s.Submission.StatusCode)
		}
		md.PlainText("")
		if s.Submission.Truncated {
			md.Note("The response body was truncated.")
			md.PlainText("")
		}
		md.CodeBlocks(markdown.SyntaxHighlight("text"), s.Submission.Body)
		md.PlainText("")
	}

	if s.Error != "" {
		md.Cautionf("Run failed (%s): %s", s.ErrorKind, s.Error)
		md.PlainText("")
	}

	return md.Build()
}
