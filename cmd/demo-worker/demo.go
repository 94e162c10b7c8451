package main

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"golang.org/x/sync/errgroup"

	"msgmon/internal/config"
	"msgmon/internal/history"
	"msgmon/internal/logger"
	"msgmon/internal/messenger"
	mwatermill "msgmon/internal/messenger/watermill"
	"msgmon/internal/transport"
	"msgmon/internal/worker"
	"msgmon/pkg/bootstrap"
)

const reportTopic = "async"

type demoOptions struct {
	interval      time.Duration
	failEvery     int
	scheduleEvery int
}

type SendReport struct {
	ReportID int `json:"report_id"`
}

func (SendReport) MessageType() string { return "demo.SendReport" }

// RunTask is what a scheduler injects for a configured task.
type RunTask struct {
	Schedule    string `json:"schedule"`
	Task        string `json:"task"`
	messageType string
}

func (t RunTask) MessageType() string { return t.messageType }

type demo struct {
	opts      demoOptions
	logger    logger.Logger
	schedules []config.ScheduleConfig
	history   *history.Listener
	worker    *worker.Listener
}

func newDemo(base *bootstrap.Base, opts demoOptions) *demo {
	transports := []string{reportTopic}
	for _, s := range base.Config.Schedules {
		transports = append(transports, transport.SchedulerTransportName(s.Name))
	}

	return &demo{
		opts:      opts,
		logger:    base.Logger,
		schedules: base.Config.Schedules,
		history:   base.Listener(history.WithMemorySampler(memoryUsage)),
		worker: worker.NewListener(base.WorkerCache, worker.Metadata{Transports: transports},
			worker.WithHeartbeat(base.Config.Worker.Heartbeat()),
			worker.WithLogger(base.Logger),
			worker.WithMemorySampler(memoryUsage),
		),
	}
}

func (d *demo) Run(ctx context.Context) error {
	wmLogger := mwatermill.NewLoggerAdapter(d.logger)
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, wmLogger)
	defer pubSub.Close()

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return fmt.Errorf("failed to create router: %w", err)
	}
	router.AddMiddleware(
		middleware.Recoverer,
		// Outermost so every attempt is recorded with its redelivery count.
		middleware.Retry{MaxRetries: 2, InitialInterval: 100 * time.Millisecond, Logger: wmLogger}.Middleware,
		mwatermill.Middleware(d.history, mwatermill.WithLogger(d.logger)),
		mwatermill.WorkerMiddleware(d.worker, d.logger),
	)

	router.AddNoPublisherHandler("send_report", reportTopic, pubSub, d.handleReport)
	for _, s := range d.schedules {
		router.AddNoPublisherHandler("run_"+s.Name, transport.SchedulerTransportName(s.Name), pubSub, d.handleTask)
	}

	publisher, err := mwatermill.PublisherDecorator(d.history)(pubSub)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return router.Run(gctx)
	})
	g.Go(func() error {
		return d.worker.Start(gctx)
	})
	g.Go(func() error {
		select {
		case <-router.Running():
		case <-gctx.Done():
			return nil
		}
		return d.produce(gctx, publisher, pubSub)
	})
	return g.Wait()
}

// produce publishes a report every interval through the monitored publisher
// and injects schedule tasks straight onto their scheduler topics.
func (d *demo) produce(ctx context.Context, reports, scheduler message.Publisher) error {
	ticker := time.NewTicker(d.opts.interval)
	defer ticker.Stop()

	for tick := 1; ; tick++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		msg, err := mwatermill.NewMessage(SendReport{ReportID: tick}, messenger.NewTagStamp("demo"))
		if err != nil {
			return err
		}
		if err := reports.Publish(reportTopic, msg); err != nil {
			return fmt.Errorf("failed to publish report: %w", err)
		}

		if d.opts.scheduleEvery <= 0 || tick%d.opts.scheduleEvery != 0 {
			continue
		}
		if err := d.trigger(scheduler, time.Now()); err != nil {
			return err
		}
	}
}

func (d *demo) trigger(scheduler message.Publisher, at time.Time) error {
	for _, s := range d.schedules {
		for _, task := range s.Tasks {
			msg, err := mwatermill.NewMessage(
				RunTask{Schedule: s.Name, Task: task.ID, messageType: task.MessageType},
				messenger.ScheduledStamp{Schedule: s.Name, TaskID: task.ID, TriggeredAt: at},
			)
			if err != nil {
				return err
			}
			if err := scheduler.Publish(transport.SchedulerTransportName(s.Name), msg); err != nil {
				return fmt.Errorf("failed to trigger %s/%s: %w", s.Name, task.ID, err)
			}
		}
	}
	return nil
}

func (d *demo) handleReport(msg *message.Message) error {
	var report SendReport
	if err := mwatermill.DecodePayload(msg, &report); err != nil {
		return err
	}

	time.Sleep(time.Duration(10+report.ReportID%40) * time.Millisecond)
	// Only the first attempt fails so the retry middleware recovers it.
	if d.opts.failEvery > 0 && report.ReportID%d.opts.failEvery == 0 && mwatermill.Redeliveries(msg.Metadata) == 0 {
		return fmt.Errorf("report %d: upstream unavailable", report.ReportID)
	}

	mwatermill.RecordResult(msg.Context(), map[string]any{"report_id": report.ReportID, "pages": report.ReportID % 7})
	return nil
}

func (d *demo) handleTask(msg *message.Message) error {
	var task RunTask
	if err := mwatermill.DecodePayload(msg, &task); err != nil {
		return err
	}
	mwatermill.RecordResult(msg.Context(), fmt.Sprintf("ran %s/%s", task.Schedule, task.Task))
	return nil
}

func memoryUsage() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc
}
