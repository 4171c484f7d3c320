package mcpserver

// LifecycleContract describes the application lifecycle rules that LLM
// agents must respect when acting as an administrator.
const LifecycleContract = `# Chancery Application Lifecycle Contract

## Statuses

| status   | meaning                                   | final |
|----------|-------------------------------------------|-------|
| New      | recorded at submission                    | no    |
| Reviewed | read by an administrator, undecided       | no    |
| Approved | accepted; acceptance communique dispatched | yes   |
| Declined | rejected; determination communique dispatched | yes |

## Allowed transitions

- New -> Reviewed, Approved, Declined
- Reviewed -> Approved, Declined
- Any status -> the same status (edits internal notes only)
- Nothing returns to New. Approved and Declined never change into each other.

## Decisions

1. Use ` + "`decide_application`" + ` with ` + "`status`" + ` and optional ` + "`notes`" + `.
   Omitting ` + "`notes`" + ` keeps the existing internal notes.
2. Moving into **Approved** or **Declined** runs the notification dispatch
   (about three seconds). On success a communique is prepended to the
   applicant's history; on failure nothing changes and the call may be retried.
3. Approval attaches a stature profile (doctrine, weight, character, vision)
   the first time only.
4. Only one dispatch runs at a time. A concurrent request fails with
   "a dispatch is already in progress"; wait and retry.

## Waitlist

- Entries are unique per email (case-insensitive) and only cleared in bulk.
- ` + "`notify_waitlist`" + ` requires an open admissions cycle and at least one entry.
  It summons everyone and leaves the waitlist unchanged.

## Admissions cycle

- ` + "`set_cycle`" + ` opens or closes intake. While closed, new submissions are refused
  and visitors are offered the waitlist instead.

## Pathways

Nexus (Foundations), Praxis (Formation), Ekballo Lab (Deployment),
Fellowship (Covering). Either name is accepted wherever a program is expected.
`
