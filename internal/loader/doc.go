// Package loader compiles the script folder into running triggers and
// services.
//
// Every *.py file in the folder is one module, named after the file. A
// module is parsed, its body run once in a fresh global table, and each
// function it defines is inspected for decorators:
//
//	@time_trigger, @state_trigger, @event_trigger,
//	@state_active, @time_active   build a trigger.Trigger
//	@service                      registers script.<function>
//
// Repeated trigger decorators accumulate their arguments. A bare decorator
// counts as present with no arguments; a function whose trigger decorators
// are all bare runs once at startup.
//
// Reload stops every trigger, unregisters every service, recompiles the
// folder and starts the new triggers. A Watcher calls Reload when files
// in the folder change.
package loader
