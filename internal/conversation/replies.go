package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinic-booking/internal/datetime"
	"github.com/wolfman30/clinic-booking/internal/scheduling"
)

const (
	apologyReply           = "Sorry, something went wrong on our side. Please send your message again in a moment."
	clinicianNotFoundReply = "Sorry, we could not find this clinic's booking line. Please contact the clinic directly."
	maxListedSlots         = 6
)

func askName(clinician string, welcome bool) Prompt {
	text := "May I have the patient's name, please?"
	if welcome {
		text = fmt.Sprintf("Assalam o Alaikum! I can book your appointment with %s. May I have the patient's name, please?", clinician)
	}
	return Prompt{Instruction: "Greet briefly and ask only for the patient's name.", Canned: text}
}

func askNameFirst() Prompt {
	return Prompt{
		Instruction: "The patient skipped ahead. Ask only for the patient's name.",
		Canned:      "Before we pick a date, please tell me the patient's name.",
	}
}

func acknowledgeThanks() Prompt {
	return Prompt{
		Instruction: "Reply to thanks and mention they can book again by sharing a name.",
		Canned:      "You're welcome! If you'd like to book another appointment, just send the patient's name.",
	}
}

func clinicSchedule(clinician string, summary []string) Prompt {
	schedule := strings.Join(summary, "\n")
	return Prompt{
		Instruction: "Share the clinic timings exactly as listed, then ask for the patient's name.",
		Canned:      fmt.Sprintf("%s is available:\n%s\n\nTo book, please send the patient's name.", clinician, schedule),
		Facts:       summary,
	}
}

func askDate(name string) Prompt {
	return Prompt{
		Instruction: "Thank the patient by name and ask only for the appointment date.",
		Canned:      fmt.Sprintf("Thank you, %s. Which date would you like? For example: aaj, kal, Monday or 15 January.", name),
		Facts:       []string{name},
	}
}

func askDateAgain() Prompt {
	return Prompt{
		Instruction: "The date was not understood. Ask only for the appointment date.",
		Canned:      "Sorry, I couldn't understand the date. Please send a date such as kal, Monday or 15 January.",
	}
}

func dayUnavailable(clinician string, date time.Time, summary []string) Prompt {
	day := datetime.FormatDate(date)
	canned := fmt.Sprintf("%s is not available on %s.", clinician, day)
	if len(summary) > 0 {
		canned += "\nAvailable days:\n" + strings.Join(summary, "\n")
	}
	canned += "\nPlease choose another date."
	return Prompt{
		Instruction: "Say the clinician is not available that day, share the schedule and ask for another date.",
		Canned:      canned,
		Facts:       append([]string{day}, summary...),
	}
}

func clinicianInactive(clinician string) Prompt {
	return Prompt{
		Instruction: "Say the clinician is not taking appointments right now.",
		Canned:      fmt.Sprintf("Sorry, %s is not taking appointments right now. Please contact the clinic directly.", clinician),
	}
}

func autoBookingDisabled(clinician string) Prompt {
	return Prompt{
		Instruction: "Say bookings for this clinician are handled by the clinic staff.",
		Canned:      fmt.Sprintf("Sorry, appointments with %s are booked by the clinic staff. Please call the clinic to book.", clinician),
	}
}

func fullyBooked(date time.Time) Prompt {
	day := datetime.FormatDate(date)
	return Prompt{
		Instruction: "Say the day is fully booked and ask for another date.",
		Canned:      fmt.Sprintf("Sorry, %s is fully booked. Please choose another date.", day),
		Facts:       []string{day},
	}
}

func dailyLimitReached(date time.Time) Prompt {
	day := datetime.FormatDate(date)
	return Prompt{
		Instruction: "Say no more appointments can be taken that day and ask for another date.",
		Canned:      fmt.Sprintf("Sorry, no more appointments can be booked on %s. Please choose another date.", day),
		Facts:       []string{day},
	}
}

func askTime(date time.Time, slots []scheduling.Slot) Prompt {
	day := datetime.FormatDate(date)
	list := slotList(slots)
	return Prompt{
		Instruction: "Ask only for the appointment time and list the free times exactly.",
		Canned:      fmt.Sprintf("What time on %s? Available times: %s.", day, list),
		Facts:       []string{day, list},
	}
}

func askTimeAgain(date time.Time, slots []scheduling.Slot) Prompt {
	day := datetime.FormatDate(date)
	list := slotList(slots)
	return Prompt{
		Instruction: "The time was not understood. Ask only for the time and list the free times exactly.",
		Canned:      fmt.Sprintf("Sorry, I couldn't understand the time. Available times on %s: %s. Please send one, for example 5 pm or shaam 6 baje.", day, list),
		Facts:       []string{day, list},
	}
}

func offerAlternatives(requested string, date time.Time, slots []scheduling.Slot, selected scheduling.Slot) Prompt {
	day := datetime.FormatDate(date)
	list := slotList(slots)
	pick := datetime.FormatTime(selected.Start)
	lead := "That time is not available"
	if requested != "" {
		lead = requested + " is not available"
	}
	return Prompt{
		Instruction: "Say the requested time is taken, list the free times exactly and offer the selected one.",
		Canned: fmt.Sprintf("%s on %s. Available times: %s. Shall I book %s? Reply YES, or send another time.",
			lead, day, list, pick),
		Facts: []string{day, list, pick},
	}
}

func slotTaken(date time.Time, slots []scheduling.Slot) Prompt {
	day := datetime.FormatDate(date)
	list := slotList(slots)
	return Prompt{
		Instruction: "Say the chosen time was just booked by someone else and ask for another time from the list.",
		Canned:      fmt.Sprintf("Sorry, that time was just booked by someone else. Available times on %s: %s. Which one would you like?", day, list),
		Facts:       []string{day, list},
	}
}

func timePassed() Prompt {
	return Prompt{
		Instruction: "Say the chosen time has already passed and ask for another time.",
		Canned:      "Sorry, that time has already passed. Please send another time.",
	}
}

func outsideHours() Prompt {
	return Prompt{
		Instruction: "Say the time is outside working hours and ask for another time.",
		Canned:      "Sorry, that time is outside the clinic's working hours. Please send another time.",
	}
}

func askConfirmation(name string, start time.Time) Prompt {
	day, clock := datetime.FormatDate(start), datetime.FormatTime(start)
	return Prompt{
		Instruction: "Repeat the booking details exactly and ask YES or NO.",
		Canned:      fmt.Sprintf("Please confirm: appointment for %s on %s at %s. Reply YES to book or NO to cancel.", name, day, clock),
		Facts:       []string{name, day, clock},
	}
}

func askConfirmationAgain(name string, start time.Time) Prompt {
	p := askConfirmation(name, start)
	p.Instruction = "The reply was not YES or NO. " + p.Instruction
	p.Canned = "Please reply YES or NO. " + p.Canned
	return p
}

func booked(start time.Time, queueNumber int) Prompt {
	day, clock := datetime.FormatDate(start), datetime.FormatTime(start)
	number := fmt.Sprintf("%d", queueNumber)
	return Prompt{
		Instruction: "Confirm the booking with the exact date, time and queue number.",
		Canned:      fmt.Sprintf("Your appointment is booked for %s at %s. Your queue number is %s.", day, clock, number),
		Facts:       []string{day, clock, number},
	}
}

func bookingDeclined() Prompt {
	return Prompt{
		Instruction: "Say nothing was booked and they can start again any time.",
		Canned:      "No problem, I haven't booked anything. Send a message any time to start again.",
	}
}

func noUpcomingAppointment() Prompt {
	return Prompt{
		Instruction: "Say there is no upcoming appointment to cancel.",
		Canned:      "I couldn't find an upcoming appointment for this number. To book a new one, please send the patient's name.",
	}
}

func askCancelConfirmation(start time.Time) Prompt {
	day, clock := datetime.FormatDate(start), datetime.FormatTime(start)
	return Prompt{
		Instruction: "Ask YES or NO to cancelling the appointment, repeating its date and time exactly.",
		Canned:      fmt.Sprintf("Do you want to cancel your appointment on %s at %s? Reply YES to cancel or NO to keep it.", day, clock),
		Facts:       []string{day, clock},
	}
}

func askCancelConfirmationAgain(start time.Time) Prompt {
	p := askCancelConfirmation(start)
	p.Canned = "Please reply YES or NO. " + p.Canned
	return p
}

func appointmentCancelled(start time.Time) Prompt {
	day, clock := datetime.FormatDate(start), datetime.FormatTime(start)
	return Prompt{
		Instruction: "Confirm the cancellation with the exact date and time.",
		Canned:      fmt.Sprintf("Your appointment on %s at %s has been cancelled.", day, clock),
		Facts:       []string{day, clock},
	}
}

func appointmentKept() Prompt {
	return Prompt{
		Instruction: "Say the appointment is kept.",
		Canned:      "Okay, your appointment is unchanged.",
	}
}

func appointmentGone() Prompt {
	return Prompt{
		Instruction: "Say the appointment is no longer active.",
		Canned:      "That appointment is no longer active, so there is nothing to cancel.",
	}
}

func slotList(slots []scheduling.Slot) string {
	shown := slots
	if len(shown) > maxListedSlots {
		shown = shown[:maxListedSlots]
	}
	times := make([]string, 0, len(shown))
	for _, s := range shown {
		times = append(times, datetime.FormatTime(s.Start))
	}
	list := strings.Join(times, ", ")
	if more := len(slots) - len(shown); more > 0 {
		list += fmt.Sprintf(" and %d more", more)
	}
	return list
}
