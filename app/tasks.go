package app

import (
	"hearth/drivers/ps2kbd"
	"hearth/drivers/tty"
	"hearth/drivers/uart"
	"hearth/internal/scancode"
	"hearth/kernel/klog"
	"hearth/kernel/task"
	"hearth/kernel/uptime"
)

// Events handed to the console per poll.
const keyBurst = 16

// keyboardTask moves decoded key events from the keyboard to the console.
// An event the console refuses is kept for the next poll.
func keyboardTask() task.Future {
	var held *scancode.Event
	return task.Named("keyboard", task.Forever(func(*task.Context) {
		for i := 0; i < keyBurst; i++ {
			if held == nil {
				ev, err := ps2kbd.Poll()
				if err != nil || ev == nil {
					klog.Failure("keyboard", err)
					return
				}
				held = ev
			}
			if err := tty.Key(*held); err != nil {
				klog.Failure("keyboard", err)
				return
			}
			held = nil
		}
	}))
}

// serialTask drains the UART receiver in case an interrupt was lost to a
// busy driver.
func serialTask() task.Future {
	return task.Named("serial", task.Forever(func(*task.Context) {
		if _, err := uart.Poll(); err != nil {
			klog.Failure("serial", err)
		}
	}))
}

// consoleTask presents the console framebuffer when something was drawn.
func consoleTask() task.Future {
	return task.Named("console", task.Forever(func(*task.Context) {
		if _, err := tty.Flush(); err != nil {
			klog.Failure("console", err)
		}
	}))
}

func heartbeatTask(ex *task.Executor) task.Future {
	return task.Named("heartbeat", task.Forever(func(*task.Context) {
		klog.Debugf("heartbeat: uptime %v, %d tasks, %d done", uptime.Now(), ex.Len(), ex.Completed())
	}))
}
