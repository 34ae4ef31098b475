// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/bureau-foundation/livyctl/lib/endpoint"
	"github.com/bureau-foundation/livyctl/lib/livy"
	"github.com/bureau-foundation/livyctl/lib/session"
)

func formatInfo(ep *endpoint.Endpoint, name string, current *int, sessions []livy.Session) string {
	var builder strings.Builder
	if current != nil {
		fmt.Fprintf(&builder, "Current session: %s (id %d)\n", name, *current)
	} else {
		builder.WriteString("No active session.\n")
	}
	if len(sessions) == 0 {
		fmt.Fprintf(&builder, "No sessions on %s.", ep)
		return builder.String()
	}
	fmt.Fprintf(&builder, "Sessions on %s:\n", ep)
	writer := tabwriter.NewWriter(&builder, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tNAME\tKIND\tSTATE\tAPP ID")
	for _, remote := range sessions {
		marker := ""
		if current != nil && remote.ID == *current {
			marker = "*"
		}
		fmt.Fprintf(writer, "%d%s\t%s\t%s\t%s\t%s\n", remote.ID, marker, dash(remote.Name), dash(remote.Kind), remote.State, dash(remote.AppID))
	}
	writer.Flush()
	return strings.TrimRight(builder.String(), "\n")
}

func formatConfig(config session.Config) string {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(config); err != nil {
		return fmt.Sprintf("Current session configuration: %+v", config)
	}
	return "Current session configuration:\n" + strings.TrimRight(buffer.String(), "\n")
}

func dash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
