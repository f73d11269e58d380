package actor

// Context is the ephemeral handle an actor receives while handling a
// message or signal. It is valid only for the duration of that call — an
// actor must not retain it past the handler that received it.
type Context struct {
	system *System
	id     ID
	parent ID
	sender ID
}

// ID is the id of the actor currently handling a message.
func (c *Context) ID() ID { return c.id }

// Parent is the id of the current actor's parent.
func (c *Context) Parent() ID { return c.parent }

// Sender is the id of whoever sent the message being handled.
func (c *Context) Sender() ID { return c.sender }

// Spawn creates a child actor under the current actor and enqueues its
// START signal. className labels the new actor in its id, matching the
// source's lower-cased class name convention.
func (c *Context) Spawn(behavior Behavior, className string) ID {
	return c.system.spawnActor(c.id, behavior, className)
}

// Send enqueues a message for target. Validation failures (unknown
// handler, wrong argument type) are reported against the current actor
// and also returned here so the caller can react immediately.
func (c *Context) Send(target ID, name string, args any) error {
	return c.system.sendMessage(c.id, target, name, args)
}

// SendParent is shorthand for Send(c.Parent(), ...).
func (c *Context) SendParent(name string, args any) error {
	return c.system.sendMessage(c.id, c.parent, name, args)
}

// Reply is shorthand for Send(c.Sender(), ...).
func (c *Context) Reply(name string, args any) error {
	return c.system.sendMessage(c.id, c.sender, name, args)
}

// Stop requests the current actor be stopped. Use StopChild to stop a
// specific child.
func (c *Context) Stop() {
	c.system.stopActor(c.id, c.id)
}

// StopChild requests target (normally a child of the current actor) be
// stopped. Permission is checked by the system: the caller must be the
// target itself, its direct parent, or the reserved System sender.
func (c *Context) StopChild(target ID) {
	c.system.stopActor(c.id, target)
}
