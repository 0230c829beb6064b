// Пакет для периодических задач обслуживания: очистка временных файлов и
// завершение неактивных сессий редактора.
package cronmanager

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type CronJobFunc func()

type Job struct {
	Func     CronJobFunc
	Schedule string
}

// Every возвращает расписание с фиксированным интервалом.
func Every(d time.Duration) string {
	return "@every " + d.String()
}

type JobRegistry map[string]Job

type CronManager struct {
	dispatcher  *cron.Cron
	jobs        map[string]cron.EntryID
	mu          sync.Mutex
	jobRegistry JobRegistry
}

func NewCronManager(jobRegistry JobRegistry) *CronManager {
	dispatcher := cron.New(
		cron.WithChain(cron.Recover(cron.DefaultLogger)),
	)

	return &CronManager{
		dispatcher:  dispatcher,
		jobs:        make(map[string]cron.EntryID),
		jobRegistry: jobRegistry,
	}
}

// LoadJobs заново планирует все задачи реестра. Задачи с некорректным расписанием
// пропускаются, ошибки по ним возвращаются вместе.
func (cm *CronManager) LoadJobs() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for name, entryID := range cm.jobs {
		cm.dispatcher.Remove(entryID)
		delete(cm.jobs, name)
	}

	var errs []error
	for name, job := range cm.jobRegistry {
		if err := cm.addJob(name, job); err != nil {
			slog.Error("Error adding job", "name", name, "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (cm *CronManager) addJob(name string, job Job) error {
	if job.Func == nil {
		return fmt.Errorf("no job function registered for name: %s", name)
	}

	id, err := cm.dispatcher.AddFunc(job.Schedule, func() {
		start := time.Now()
		job.Func()
		slog.Debug("Cron job done", "name", name, "duration", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("failed to add job '%s': %w", name, err)
	}
	cm.jobs[name] = id
	return nil
}

// Jobs возвращает имена запланированных задач.
func (cm *CronManager) Jobs() []string {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	names := make([]string, 0, len(cm.jobs))
	for name := range cm.jobs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Next возвращает время следующего запуска задачи.
func (cm *CronManager) Next(name string) (time.Time, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	id, ok := cm.jobs[name]
	if !ok {
		return time.Time{}, false
	}
	return cm.dispatcher.Entry(id).Next, true
}

func (cm *CronManager) RemoveJob(name string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if entryID, exists := cm.jobs[name]; exists {
		cm.dispatcher.Remove(entryID)
		delete(cm.jobs, name)
	}
}

func (cm *CronManager) Start() {
	cm.dispatcher.Start()
}

// Stop останавливает планировщик и ждет завершения выполняющихся задач.
func (cm *CronManager) Stop() {
	ctx := cm.dispatcher.Stop()
	<-ctx.Done()
}
