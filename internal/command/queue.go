// Package command queues record writes and runs them in submission order.
package command

import (
	"context"
	"errors"
	"fmt"

	"pharmacy-service/internal/apperr"
	"pharmacy-service/internal/records"
)

// Executor runs one parameterized statement and reports the affected rows
type Executor interface {
	Execute(ctx context.Context, query string, args ...any) (int64, error)
}

// Command is one deferred write
type Command interface {
	Name() string
	Execute(ctx context.Context, exec Executor) error
}

// InsertCommand persists a record validated for insert
type InsertCommand struct {
	Record *records.Record
}

func NewInsertCommand(r *records.Record) *InsertCommand {
	return &InsertCommand{Record: r}
}

func (c *InsertCommand) Name() string {
	return fmt.Sprintf("insert %s %s", c.Record.Schema().Entity, c.Record.ID())
}

func (c *InsertCommand) Execute(ctx context.Context, exec Executor) error {
	stmt, err := c.Record.InsertStatement()
	if err != nil {
		return err
	}
	_, err = exec.Execute(ctx, stmt.Query, stmt.Args...)
	return err
}

// UpdateCommand rewrites every non-key column of a record validated for update
type UpdateCommand struct {
	Record *records.Record
}

func NewUpdateCommand(r *records.Record) *UpdateCommand {
	return &UpdateCommand{Record: r}
}

func (c *UpdateCommand) Name() string {
	return fmt.Sprintf("update %s %s", c.Record.Schema().Entity, c.Record.ID())
}

func (c *UpdateCommand) Execute(ctx context.Context, exec Executor) error {
	stmt, err := c.Record.UpdateStatement()
	if err != nil {
		return err
	}
	n, err := exec.Execute(ctx, stmt.Query, stmt.Args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound(c.Record.Schema().Key(), "%s ID %s does not exist", c.Record.Schema().Entity, c.Record.ID())
	}
	return nil
}

// DeleteCommand removes one row by key
type DeleteCommand struct {
	Schema *records.Schema
	ID     string
}

func NewDeleteCommand(schema *records.Schema, id string) *DeleteCommand {
	return &DeleteCommand{Schema: schema, ID: id}
}

func (c *DeleteCommand) Name() string {
	return fmt.Sprintf("delete %s %s", c.Schema.Entity, c.ID)
}

func (c *DeleteCommand) Execute(ctx context.Context, exec Executor) error {
	stmt := c.Schema.DeleteStatement(c.ID)
	n, err := exec.Execute(ctx, stmt.Query, stmt.Args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound(c.Schema.Key(), "%s ID %s does not exist", c.Schema.Entity, c.ID)
	}
	return nil
}

// Queue is a FIFO of pending commands. It is not safe for concurrent use.
type Queue struct {
	commands []Command
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Add(c Command) {
	q.commands = append(q.commands, c)
}

func (q *Queue) Len() int {
	return len(q.commands)
}

// RunAll executes every queued command in order and empties the queue.
// A failing command does not stop the ones after it; all failures are
// returned joined, each prefixed with the command name.
func (q *Queue) RunAll(ctx context.Context, exec Executor) error {
	pending := q.commands
	q.commands = nil

	var errs []error
	for _, c := range pending {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
			continue
		}
		if err := c.Execute(ctx, exec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}
