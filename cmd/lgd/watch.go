package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/lgates/internal/events"
	"github.com/alfredjeanlab/lgates/internal/model"
)

var watchCmd = &cobra.Command{
	Use:   "watch [initiative-id]",
	Short: "Stream governance events as they happen",
	Long: `Stream governance events as they happen.

With a NATS URL (--nats, LGATES_NATS_URL or the active remote) every
committed change is shown live. Without one, lgd polls the audit trail of
the given initiative instead.`,
	GroupID: "system",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := ""
		if len(args) == 1 {
			filter = args[0]
		}
		natsURL, _ := cmd.Flags().GetString("nats")
		interval, _ := cmd.Flags().GetDuration("interval")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if natsURL != "" {
			return watchNATS(ctx, natsURL, filter, cmd.OutOrStdout())
		}
		if filter == "" {
			return errors.New("polling needs an initiative id (or configure a NATS URL)")
		}
		return watchPoll(ctx, filter, interval, cmd.OutOrStdout())
	},
}

func defaultNATSURL() string {
	if s := os.Getenv("LGATES_NATS_URL"); s != "" {
		return s
	}
	return activeRemoteNATSURL()
}

// watchNATS prints live events. With a filter only that initiative's
// subjects are subscribed.
func watchNATS(ctx context.Context, natsURL, filter string, w io.Writer) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected; events published while disconnected are not replayed")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	subject := events.TopicAll
	if filter != "" {
		subject = events.InitiativeSubject(filter)
	}
	ch, cancel, err := sub.Subscribe(subject)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	return streamEvents(ctx, ch, filter, w)
}

// streamEvents prints messages from ch until ctx ends or ch closes. A
// non-empty filter keeps only events about that initiative.
func streamEvents(ctx context.Context, ch <-chan events.Message, filter string, w io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			d := describeEvent(msg.Topic, msg.Data)
			if msg.InitiativeID != "" {
				d.initiativeID = msg.InitiativeID
			}
			if filter != "" && d.initiativeID != filter {
				continue
			}
			if jsonOutput {
				fmt.Fprintf(w, "{\"topic\":%q,\"data\":%s}\n", msg.Topic, msg.Data)
				continue
			}
			fmt.Fprintf(w, "%s  %-30s %-12s %-3s %s\n", time.Now().Format("15:04:05"), msg.Topic, d.initiativeID, d.gate, d.summary)
		}
	}
}

// watchPoll prints new audit events of one initiative every interval.
func watchPoll(ctx context.Context, initiativeID string, interval time.Duration, w io.Writer) error {
	var last int64
	for {
		evts, err := gatesClient.GetEvents(ctx, initiativeID)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		last = printNewEvents(w, evts, last)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// printNewEvents prints the events with an ID above last and returns the
// highest ID seen.
func printNewEvents(w io.Writer, evts []*model.Event, last int64) int64 {
	for _, e := range evts {
		if e.ID <= last {
			continue
		}
		d := describeEvent(e.Topic, e.Payload)
		fmt.Fprintf(w, "%s  %-30s %-12s %-3s %s\n", e.CreatedAt.Local().Format("15:04:05"), e.Topic, e.InitiativeID, e.Gate, d.summary)
		last = e.ID
	}
	return last
}

type eventDescription struct {
	initiativeID string
	gate         model.Gate
	summary      string
}

// describeEvent extracts who and what from any lgates event payload.
func describeEvent(topic string, data []byte) eventDescription {
	var p struct {
		Initiative   *model.Initiative       `json:"initiative"`
		InitiativeID string                  `json:"initiativeId"`
		Form         *model.GateForm         `json:"form"`
		From         model.FormStatus        `json:"from"`
		Reason       string                  `json:"reason"`
		Status       *model.InitiativeStatus `json:"status"`
		UserRole     *model.UserRole         `json:"userRole"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return eventDescription{summary: "(undecodable payload)"}
	}

	var d eventDescription
	switch {
	case p.Form != nil:
		d.initiativeID = p.Form.InitiativeID
		d.gate = p.Form.Gate
		d.summary = fmt.Sprintf("%s -> %s by %s", p.From, p.Form.Status, p.Form.UpdatedBy)
		if p.Reason != "" {
			d.summary += ": " + p.Reason
		}
	case p.Status != nil:
		d.initiativeID = p.Status.InitiativeID
		d.summary = fmt.Sprintf("cost=%s benefit=%s timeline=%s scope=%s",
			p.Status.CostStatus, p.Status.BenefitStatus, p.Status.TimelineStatus, p.Status.ScopeStatus)
	case p.Initiative != nil:
		d.initiativeID = p.Initiative.ID
		d.summary = p.Initiative.Name
	case p.UserRole != nil:
		d.summary = fmt.Sprintf("%s is %s", p.UserRole.UserID, p.UserRole.Role)
	case p.InitiativeID != "":
		d.initiativeID = p.InitiativeID
		d.summary = "deleted"
	default:
		d.summary = topic
	}
	return d
}

func init() {
	watchCmd.Flags().String("nats", defaultNATSURL(), "NATS URL for live events")
	watchCmd.Flags().Duration("interval", 5*time.Second, "polling interval without NATS")
}
