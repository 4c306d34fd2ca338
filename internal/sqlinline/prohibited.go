package sqlinline

const QCreateProhibitedRequests = `--sql 9c1d4e7a-5b2f-4f63-8a0e-3d7b6c2e91f4
create table if not exists prohibited_requests (
  id uuid primary key,
  user_id text not null,
  created_at timestamptz not null default now()
);
create index if not exists prohibited_requests_user_created_idx
  on prohibited_requests (user_id, created_at);
`

const QInsertProhibitedRequest = `--sql 25a2af3c-28fd-4ff2-aeb8-db961042b313
insert into prohibited_requests (id, user_id, created_at)
values (gen_random_uuid(), $1::text, now());
`

const QCountProhibitedRequests = `--sql 42ebe878-7977-4163-b958-5391f9064353
select count(*)::int
from prohibited_requests
where user_id = $1::text
  and created_at > now() - make_interval(secs => $2::double precision);
`

const QPruneProhibitedRequests = `--sql ae88236a-88cf-42a2-bd86-329a1db34428
delete from prohibited_requests
where created_at <= now() - make_interval(secs => $1::double precision);
`
