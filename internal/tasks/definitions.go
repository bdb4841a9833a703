package tasks

// DefineTasks registers all available tasks
func DefineTasks() {
	RegisterHandler(LogInfoTask.TaskID(), LogInfoTask.HandleExecution)
	RegisterHandler(PurgeEntryLocksTask.TaskID(), PurgeEntryLocksTask.HandleExecution)
	RegisterHandler(SendReturnReminderTask.TaskID(), SendReturnReminderTask.HandleExecution)
}
